package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/imaker-dev/restro-backend-sub004/internal/db"
	"github.com/imaker-dev/restro-backend-sub004/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	return gdb
}

// fakeSender records sends and answers with a canned status code.
type fakeSender struct {
	mu        sync.Mutex
	status    map[string]int // endpoint -> response code, default 201
	endpoints []string
	payloads  [][]byte
	done      chan struct{}
}

func (f *fakeSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints = append(f.endpoints, sub.Endpoint)
	f.payloads = append(f.payloads, payload)
	code := http.StatusCreated
	if c, ok := f.status[sub.Endpoint]; ok {
		code = c
	}
	if f.done != nil {
		select {
		case f.done <- struct{}{}:
		default:
		}
	}
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func seedFailedJob(t *testing.T, gdb *gorm.DB) model.PrintJob {
	t.Helper()
	job := model.PrintJob{
		UUID: "test-uuid-1", OutletID: 1, Station: "kot_kitchen",
		JobType: model.JobTypeKOT, ContentType: model.ContentTypeEscPos,
		Content: []byte{0x1B, 0x40}, Attempts: 3, MaxAttempts: 3,
		Status: model.JobStatusFailed, ReferenceNumber: "K-104",
	}
	require.NoError(t, gdb.Create(&job).Error)
	return job
}

func TestAlertPoolSendsToOutletSubscriptions(t *testing.T) {
	gdb := newTestDB(t)
	job := seedFailedJob(t, gdb)

	subs := []model.PushSubscription{
		{Endpoint: "https://push.example/a", P256DH: "p", Auth: "a", OutletID: 1},
		{Endpoint: "https://push.example/b", P256DH: "p", Auth: "a", OutletID: 1},
		{Endpoint: "https://push.example/other", P256DH: "p", Auth: "a", OutletID: 2},
	}
	for i := range subs {
		require.NoError(t, gdb.Create(&subs[i]).Error)
	}

	sender := &fakeSender{done: make(chan struct{}, 8)}
	pool := NewAlertPool(2, gdb, &webpush.Options{Subscriber: "ops@example.com"})
	pool.SetSender(sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	pool.Dispatch(job.ID)

	waitForSends(t, sender, 2)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.ElementsMatch(t, []string{"https://push.example/a", "https://push.example/b"}, sender.endpoints)
	assert.Contains(t, string(sender.payloads[0]), "K-104")
	assert.Contains(t, string(sender.payloads[0]), "failed after 3 attempts")
}

func TestAlertPoolDeletesExpiredSubscription(t *testing.T) {
	gdb := newTestDB(t)
	job := seedFailedJob(t, gdb)

	sub := model.PushSubscription{Endpoint: "https://push.example/gone", P256DH: "p", Auth: "a", OutletID: 1}
	require.NoError(t, gdb.Create(&sub).Error)

	sender := &fakeSender{
		status: map[string]int{"https://push.example/gone": http.StatusGone},
		done:   make(chan struct{}, 8),
	}
	pool := NewAlertPool(1, gdb, nil)
	pool.SetSender(sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	pool.Dispatch(job.ID)
	waitForSends(t, sender, 1)

	require.Eventually(t, func() bool {
		var count int64
		gdb.Model(&model.PushSubscription{}).Count(&count)
		return count == 0
	}, 2*time.Second, 10*time.Millisecond, "expired subscription must be deleted")
}

func TestDispatchNeverBlocks(t *testing.T) {
	// No workers started: the buffer fills, extra dispatches are dropped.
	pool := NewAlertPool(1, nil, nil)
	for i := 0; i < 100; i++ {
		pool.Dispatch(int64(i))
	}
	assert.Equal(t, cap(pool.Jobs()), len(pool.Jobs()))
}

func waitForSends(t *testing.T, sender *fakeSender, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.endpoints) >= n
	}, 2*time.Second, 10*time.Millisecond)
}
