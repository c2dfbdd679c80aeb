package escpos

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadBetween(t *testing.T) {
	line := PadBetween("left", "right")
	assert.Len(t, line, LineWidth)
	assert.True(t, strings.HasPrefix(line, "left"))
	assert.True(t, strings.HasSuffix(line, "right"))

	// When the sides do not fit, a single space joins them.
	long := strings.Repeat("a", 30)
	assert.Equal(t, long+" "+long, PadBetween(long, long))
}

func TestRightAlign(t *testing.T) {
	assert.Len(t, RightAlign("42.00"), LineWidth)
	assert.True(t, strings.HasSuffix(RightAlign("42.00"), "42.00"))

	over := strings.Repeat("x", LineWidth+3)
	assert.Equal(t, over, RightAlign(over))
}

func TestCenterText(t *testing.T) {
	centred := CenterText("HI")
	assert.Equal(t, strings.Repeat(" ", 20)+"HI", centred)
	assert.Equal(t, "HI", strings.TrimSpace(centred))
}

func TestWordWrap(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		width    int
		expected []string
	}{
		{"empty", "", 10, []string{""}},
		{"fits", "short", 10, []string{"short"}},
		{"splits on spaces", "one two three", 7, []string{"one two", "three"}},
		{"hard breaks long word", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"zero width uses line width", strings.Repeat("a", 10), 0, []string{strings.Repeat("a", 10)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, WordWrap(tc.input, tc.width))
		})
	}
}

func TestFormatKOT(t *testing.T) {
	text := FormatKOT(KOTData{
		OutletName:      "Cafe One",
		Station:         "kot_kitchen",
		ReferenceNumber: "K-104",
		TableNumber:     "T7",
		Waiter:          "ravi",
		CreatedAt:       time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC),
		Items: []KOTItem{
			{Name: "Paneer Tikka", Qty: 2, Note: "extra spicy"},
			{Name: "Butter Naan", Qty: 4},
		},
		Note: "serve together",
	})

	assert.Contains(t, text, "<dh>KOT</dh>")
	assert.Contains(t, text, "KOT_KITCHEN")
	assert.Contains(t, text, "KOT No: K-104")
	assert.Contains(t, text, "Table: T7")
	assert.Contains(t, text, "14/03/2026 19:30")
	assert.Contains(t, text, "Paneer Tikka")
	assert.Contains(t, text, "** extra spicy")
	assert.Contains(t, text, "Note: serve together")

	// Item lines hold the quantity on the right edge.
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "Paneer Tikka") {
			assert.Len(t, line, LineWidth)
			assert.True(t, strings.HasSuffix(line, "2"))
		}
	}
}

func TestFormatBill(t *testing.T) {
	d := BillData{
		OutletName:      "Cafe One",
		AddressLines:    []string{"12 High St", "Springfield"},
		Phone:           "555-0101",
		TaxNumber:       "GSTIN-998",
		ReferenceNumber: "B-2201",
		TableNumber:     "T7",
		Cashier:         "meera",
		CreatedAt:       time.Date(2026, 3, 14, 21, 2, 0, 0, time.UTC),
		Items: []BillItem{
			{Name: "Paneer Tikka", Qty: 2, UnitPrice: 240, Amount: 480},
			{Name: "A very long dish name that cannot share a line", Qty: 1, UnitPrice: 99.5, Amount: 99.5},
		},
		Subtotal:   579.5,
		Discount:   20,
		Taxes:      []TaxLine{{Label: "CGST 2.5%", Amount: 13.99}, {Label: "SGST 2.5%", Amount: 13.99}},
		Total:      587.48,
		Duplicate:  true,
		FooterNote: "Thank you, visit again",
	}
	text := FormatBill(d)

	assert.Contains(t, text, "<dh>Cafe One</dh>")
	assert.Contains(t, text, "** DUPLICATE **")
	assert.Contains(t, text, "Bill No: B-2201")
	assert.Contains(t, text, "480.00")
	assert.Contains(t, text, "Subtotal")
	assert.Contains(t, text, "-20.00")
	assert.Contains(t, text, "CGST 2.5%")
	assert.Contains(t, text, "<b>TOTAL")
	assert.Contains(t, text, "587.48")
	assert.Contains(t, text, "<c>Thank you, visit again</c>")

	// The overlong item name wraps onto its own lines with the amounts below.
	assert.Contains(t, text, "A very long dish name that cannot share a")
}

func TestFormatCancelSlip(t *testing.T) {
	text := FormatCancelSlip(CancelData{
		OutletName:      "Cafe One",
		Station:         "kot_kitchen",
		ReferenceNumber: "K-104",
		TableNumber:     "T7",
		Reason:          "customer changed order",
		CancelledBy:     "meera",
		CancelledAt:     time.Date(2026, 3, 14, 19, 40, 0, 0, time.UTC),
		Items:           []KOTItem{{Name: "Butter Naan", Qty: 4}},
	})

	assert.Contains(t, text, "<dh>CANCELLED</dh>")
	assert.Contains(t, text, "Ref: K-104")
	assert.Contains(t, text, "Butter Naan")
	assert.Contains(t, text, "Reason: customer changed order")
}

func TestFormatTestPage(t *testing.T) {
	text := FormatTestPage(TestData{
		OutletName:  "Cafe One",
		PrinterName: "Kitchen Epson",
		Station:     "kot_kitchen",
		PrintedAt:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	})

	assert.Contains(t, text, "PRINT TEST")
	assert.Contains(t, text, "Kitchen Epson")
	assert.Contains(t, text, "Printer OK!")
}

func TestFormatDispatch(t *testing.T) {
	for _, doc := range []Document{
		KOTData{ReferenceNumber: "K-1"},
		BillData{ReferenceNumber: "B-1"},
		CancelData{ReferenceNumber: "K-1"},
		TestData{PrinterName: "p"},
	} {
		text, err := Format(doc)
		require.NoError(t, err)
		assert.NotEmpty(t, text)
	}
}
