package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/imaker-dev/restro-backend-sub004/config"
	"github.com/imaker-dev/restro-backend-sub004/internal/db"
	"github.com/imaker-dev/restro-backend-sub004/internal/model"
	"github.com/imaker-dev/restro-backend-sub004/internal/netprint"
	"github.com/imaker-dev/restro-backend-sub004/internal/notify"
	"github.com/imaker-dev/restro-backend-sub004/internal/queue"
	"github.com/imaker-dev/restro-backend-sub004/internal/registry"
	"github.com/imaker-dev/restro-backend-sub004/internal/status"
)

type testEnv struct {
	gdb    *gorm.DB
	reg    *registry.Registry
	queue  *queue.Queue
	hub    *notify.Hub
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	reg := registry.New(gdb)
	hub := notify.NewHub()
	q := queue.New(gdb, reg, 3, hub, nil)
	client := netprint.NewClient(0)
	tracker := status.New(reg, client, time.Second, 90*time.Second, 90*time.Second)

	var cfg config.Config
	cfg.ApplyDefaults()
	cfg.Print.SendTimeoutMs = 500
	cfg.Print.SendTimeout = 500 * time.Millisecond

	h := NewHandler(reg, q, tracker, client, hub, nil, cfg.Print, nil)
	router := NewRouter(h, RouterOptions{RateLimitPerSec: 1000, RateLimitBurst: 1000})
	return &testEnv{gdb: gdb, reg: reg, queue: q, hub: hub, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// seedBridgeEnv registers a printer (which seeds the default bridge) and a
// pending job for its station.
func (e *testEnv) seedBridgeEnv(t *testing.T) (model.Printer, *model.PrintJob) {
	t.Helper()
	ctx := context.Background()
	printer := model.Printer{OutletID: 1, Name: "Kitchen", Station: "kot_kitchen", IP: "192.168.1.50"}
	require.NoError(t, e.reg.CreatePrinter(ctx, &printer))
	// Keep the enqueue path off the direct TCP fallback.
	bridge, err := e.reg.BridgeByCode(ctx, 1, "default")
	require.NoError(t, err)
	require.NoError(t, e.reg.MarkBridgeOnline(ctx, bridge.ID, "10.0.0.2"))

	job, err := e.queue.Enqueue(ctx, queue.EnqueueParams{
		OutletID: 1, Station: "kot_kitchen", JobType: model.JobTypeKOT,
		ContentType: model.ContentTypeEscPos, Content: []byte{0x1B, 0x40, 'h', 'i'},
		ReferenceNumber: "K-104",
	})
	require.NoError(t, err)
	return printer, job
}

func defaultKey() map[string]string {
	return map[string]string{"X-Bridge-Key": model.DefaultBridgeKey}
}

func TestBridgePollClaimsJob(t *testing.T) {
	env := newTestEnv(t)
	printer, job := env.seedBridgeEnv(t)

	w := env.do(t, http.MethodPost, "/api/bridge/poll",
		gin.H{"outlet_id": 1, "bridge_code": "default"}, defaultKey())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	payload, ok := body["job"].(map[string]any)
	require.True(t, ok, "expected a job in the response")
	assert.Equal(t, float64(job.ID), payload["id"])
	assert.Equal(t, "kot_kitchen", payload["station"])
	assert.Equal(t, "K-104", payload["reference_number"])
	assert.Equal(t, printer.IP, payload["printer_ip"])
	assert.Equal(t, float64(9100), payload["printer_port"])

	// Content is base64 over the wire and decodes back to the exact bytes.
	raw, err := json.Marshal(payload["content"])
	require.NoError(t, err)
	var content []byte
	require.NoError(t, json.Unmarshal(raw, &content))
	assert.Equal(t, []byte{0x1B, 0x40, 'h', 'i'}, content)

	// A second poll finds the queue empty: 200 with a null job.
	w = env.do(t, http.MethodPost, "/api/bridge/poll",
		gin.H{"outlet_id": 1, "bridge_code": "default"}, defaultKey())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeBody(t, w)["job"])
}

func TestBridgePollAuth(t *testing.T) {
	env := newTestEnv(t)
	env.seedBridgeEnv(t)

	testCases := []struct {
		name     string
		headers  map[string]string
		expected int
	}{
		{"wrong key", map[string]string{"X-Bridge-Key": "wrong"}, http.StatusUnauthorized},
		{"missing key", nil, http.StatusUnauthorized},
		{"bearer form", map[string]string{"Authorization": "Bearer " + model.DefaultBridgeKey}, http.StatusOK},
		{"dedicated header", defaultKey(), http.StatusOK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/bridge/poll",
				gin.H{"outlet_id": 1, "bridge_code": "default"}, tc.headers)
			assert.Equal(t, tc.expected, w.Code, w.Body.String())
		})
	}
}

func TestBridgePollMarksBridgeOnline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	printer := model.Printer{OutletID: 1, Name: "Kitchen", Station: "kot_kitchen"}
	require.NoError(t, env.reg.CreatePrinter(ctx, &printer))

	w := env.do(t, http.MethodPost, "/api/bridge/poll",
		gin.H{"outlet_id": 1, "bridge_code": "default"}, defaultKey())
	require.Equal(t, http.StatusOK, w.Code)

	bridge, err := env.reg.BridgeByCode(ctx, 1, "default")
	require.NoError(t, err)
	assert.True(t, bridge.IsOnline)
	require.NotNil(t, bridge.LastPollAt)
}

func TestBridgePollFixedStationOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	printer := model.Printer{OutletID: 1, Name: "Bill", Station: "bill"}
	require.NoError(t, env.reg.CreatePrinter(ctx, &printer))

	bridge := model.Bridge{OutletID: 1, Name: "Counter", Code: "counter", Stations: "bill,kot_kitchen"}
	require.NoError(t, env.reg.CreateBridge(ctx, &bridge, "counter-key-123456"))

	// The kitchen job has higher priority, but "bill" is first in the
	// bridge's assignment, so it wins.
	_, err := env.queue.Enqueue(ctx, queue.EnqueueParams{
		OutletID: 1, Station: "kot_kitchen", JobType: model.JobTypeKOT,
		Content: []byte("kot"), Priority: 9,
	})
	require.NoError(t, err)
	billJob, err := env.queue.Enqueue(ctx, queue.EnqueueParams{
		OutletID: 1, Station: "bill", JobType: model.JobTypeBill,
		Content: []byte("bill"),
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/bridge/poll",
		gin.H{"outlet_id": 1, "bridge_code": "counter"},
		map[string]string{"X-Bridge-Key": "counter-key-123456"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	payload := decodeBody(t, w)["job"].(map[string]any)
	assert.Equal(t, float64(billJob.ID), payload["id"])

	// A fixed bridge never sees stations outside its assignment.
	other := model.Bridge{OutletID: 1, Name: "Bar only", Code: "bar", Stations: "bar"}
	require.NoError(t, env.reg.CreateBridge(ctx, &other, "bar-key-1234567"))
	w = env.do(t, http.MethodPost, "/api/bridge/poll",
		gin.H{"outlet_id": 1, "bridge_code": "bar"},
		map[string]string{"X-Bridge-Key": "bar-key-1234567"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeBody(t, w)["job"])
}

func TestBridgeAckLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, job := env.seedBridgeEnv(t)

	w := env.do(t, http.MethodPost, "/api/bridge/poll",
		gin.H{"outlet_id": 1, "bridge_code": "default"}, defaultKey())
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/bridge/ack",
		gin.H{"outlet_id": 1, "bridge_code": "default", "job_id": job.ID, "status": "printed"},
		defaultKey())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := env.queue.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPrinted, got.Status)
}

func TestBridgeAckFailureRequeues(t *testing.T) {
	env := newTestEnv(t)
	_, job := env.seedBridgeEnv(t)

	w := env.do(t, http.MethodPost, "/api/bridge/poll",
		gin.H{"outlet_id": 1, "bridge_code": "default"}, defaultKey())
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/bridge/ack",
		gin.H{"outlet_id": 1, "bridge_code": "default", "job_id": job.ID,
			"status": "failed", "error": "printer offline"},
		defaultKey())
	require.Equal(t, http.StatusOK, w.Code)

	got, err := env.queue.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status, "one failure of three requeues")
}

func TestBridgeAckValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedBridgeEnv(t)

	w := env.do(t, http.MethodPost, "/api/bridge/ack",
		gin.H{"outlet_id": 1, "bridge_code": "default", "job_id": 1, "status": "maybe"},
		defaultKey())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBridgePrinterMapEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedBridgeEnv(t)

	w := env.do(t, http.MethodGet, "/api/bridge/printers?outlet_id=1&bridge_code=default", nil, defaultKey())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	printers := decodeBody(t, w)["printers"].(map[string]any)
	require.Contains(t, printers, "kot_kitchen")
	target := printers["kot_kitchen"].(map[string]any)
	assert.Equal(t, "192.168.1.50", target["ip"])
	assert.Equal(t, float64(9100), target["port"])
}

func TestBridgeStatusReportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	printer, _ := env.seedBridgeEnv(t)

	w := env.do(t, http.MethodPost, "/api/bridge/status",
		gin.H{
			"outlet_id":   1,
			"bridge_code": "default",
			"printers": []gin.H{
				{"printer_id": printer.ID, "is_online": true},
				{"station": "ghost", "is_online": false},
			},
		},
		defaultKey())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["matched"])
	assert.Equal(t, float64(1), body["unmatched"])
	sample := body["unmatched_sample"].([]any)
	require.Len(t, sample, 1)

	got, err := env.reg.GetPrinter(context.Background(), printer.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)
}
