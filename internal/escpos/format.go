package escpos

import (
	"fmt"
	"strings"
	"time"
)

// LineWidth is the fixed layout width for text positioning. Formatters
// always lay out against 42 columns regardless of the printer's configured
// width; narrower printers simply wrap the overflow.
const LineWidth = 42

const timeLayout = "02/01/2006 15:04"

// PadBetween lays out left and right on one line with the gap filled by
// spaces. If the two sides do not fit, they are joined by a single space.
func PadBetween(left, right string) string {
	gap := LineWidth - len(left) - len(right)
	if gap < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", gap) + right
}

// RightAlign pads s with leading spaces to the line width.
func RightAlign(s string) string {
	if len(s) >= LineWidth {
		return s
	}
	return strings.Repeat(" ", LineWidth-len(s)) + s
}

// CenterText pads s with leading spaces so it sits centred on the line.
func CenterText(s string) string {
	if len(s) >= LineWidth {
		return s
	}
	return strings.Repeat(" ", (LineWidth-len(s))/2) + s
}

// WordWrap breaks s into lines no longer than width, splitting on spaces
// where possible and hard-breaking words longer than a full line.
func WordWrap(s string, width int) []string {
	if width <= 0 {
		width = LineWidth
	}
	var lines []string
	for _, word := range strings.Fields(s) {
		for len(word) > width {
			lines = append(lines, word[:width])
			word = word[width:]
		}
		if len(lines) == 0 {
			lines = append(lines, word)
			continue
		}
		last := lines[len(lines)-1]
		if len(last)+1+len(word) <= width {
			lines[len(lines)-1] = last + " " + word
		} else {
			lines = append(lines, word)
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func divider() string {
	return strings.Repeat("-", LineWidth)
}

// KOTItem is one ordered line on a kitchen ticket.
type KOTItem struct {
	Name string
	Qty  int
	Note string
}

// KOTData carries everything a kitchen order ticket prints.
type KOTData struct {
	OutletName      string
	Station         string
	ReferenceNumber string
	TableNumber     string
	Waiter          string
	CreatedAt       time.Time
	Items           []KOTItem
	Note            string
}

// BillItem is one charged line on a customer bill.
type BillItem struct {
	Name      string
	Qty       int
	UnitPrice float64
	Amount    float64
}

// TaxLine is a labelled tax amount on a bill.
type TaxLine struct {
	Label  string
	Amount float64
}

// BillData carries everything a customer bill prints.
type BillData struct {
	OutletName      string
	AddressLines    []string
	Phone           string
	TaxNumber       string
	ReferenceNumber string
	TableNumber     string
	Cashier         string
	CreatedAt       time.Time
	Items           []BillItem
	Subtotal        float64
	Discount        float64
	Taxes           []TaxLine
	Total           float64
	Duplicate       bool
	FooterNote      string
}

// CancelData carries a cancellation slip for the kitchen.
type CancelData struct {
	OutletName      string
	Station         string
	ReferenceNumber string
	TableNumber     string
	Reason          string
	CancelledBy     string
	CancelledAt     time.Time
	Items           []KOTItem
}

// TestData carries a connectivity test page.
type TestData struct {
	OutletName  string
	PrinterName string
	Station     string
	PrintedAt   time.Time
}

// Document is the tagged union of printable documents. Exactly the types
// KOTData, BillData, CancelData, TestData implement it.
type Document interface{ isDocument() }

func (KOTData) isDocument()    {}
func (BillData) isDocument()   {}
func (CancelData) isDocument() {}
func (TestData) isDocument()   {}

// Format renders any document variant to its text layout.
func Format(doc Document) (string, error) {
	switch d := doc.(type) {
	case KOTData:
		return FormatKOT(d), nil
	case BillData:
		return FormatBill(d), nil
	case CancelData:
		return FormatCancelSlip(d), nil
	case TestData:
		return FormatTestPage(d), nil
	default:
		return "", fmt.Errorf("unknown document type %T", doc)
	}
}

// FormatKOT renders a kitchen order ticket.
func FormatKOT(d KOTData) string {
	var b strings.Builder
	b.WriteString("<c><b><dh>KOT</dh></b>\n")
	if d.Station != "" {
		b.WriteString(strings.ToUpper(d.Station) + "\n")
	}
	b.WriteString("</c>")
	b.WriteString(divider() + "\n")
	b.WriteString(PadBetween("KOT No: "+d.ReferenceNumber, "Table: "+d.TableNumber) + "\n")
	b.WriteString(PadBetween(d.CreatedAt.Format(timeLayout), "By: "+d.Waiter) + "\n")
	b.WriteString(divider() + "\n")
	b.WriteString(PadBetween("ITEM", "QTY") + "\n")
	for _, it := range d.Items {
		qty := fmt.Sprintf("%d", it.Qty)
		for i, line := range WordWrap(it.Name, LineWidth-6) {
			if i == 0 {
				b.WriteString(PadBetween(line, qty) + "\n")
			} else {
				b.WriteString("  " + line + "\n")
			}
		}
		if it.Note != "" {
			for _, line := range WordWrap("** "+it.Note, LineWidth-2) {
				b.WriteString("  " + line + "\n")
			}
		}
	}
	if d.Note != "" {
		b.WriteString(divider() + "\n")
		for _, line := range WordWrap("Note: "+d.Note, LineWidth) {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString(divider() + "\n")
	return b.String()
}

// FormatBill renders a customer bill.
func FormatBill(d BillData) string {
	var b strings.Builder
	b.WriteString("<c><b><dh>" + d.OutletName + "</dh></b>\n")
	for _, line := range d.AddressLines {
		b.WriteString(line + "\n")
	}
	if d.Phone != "" {
		b.WriteString("Ph: " + d.Phone + "\n")
	}
	if d.TaxNumber != "" {
		b.WriteString("Tax No: " + d.TaxNumber + "\n")
	}
	if d.Duplicate {
		b.WriteString("<b>** DUPLICATE **</b>\n")
	}
	b.WriteString("</c>")
	b.WriteString(divider() + "\n")
	b.WriteString(PadBetween("Bill No: "+d.ReferenceNumber, "Table: "+d.TableNumber) + "\n")
	b.WriteString(PadBetween(d.CreatedAt.Format(timeLayout), "By: "+d.Cashier) + "\n")
	b.WriteString(divider() + "\n")
	b.WriteString(PadBetween("ITEM", fmt.Sprintf("%4s %8s %9s", "QTY", "RATE", "AMOUNT")) + "\n")
	for _, it := range d.Items {
		right := fmt.Sprintf("%4d %8.2f %9.2f", it.Qty, it.UnitPrice, it.Amount)
		lines := WordWrap(it.Name, LineWidth-len(right)-1)
		if len(lines) == 1 && len(lines[0])+len(right)+1 <= LineWidth {
			b.WriteString(PadBetween(lines[0], right) + "\n")
		} else {
			for _, line := range WordWrap(it.Name, LineWidth) {
				b.WriteString(line + "\n")
			}
			b.WriteString(RightAlign(right) + "\n")
		}
	}
	b.WriteString(divider() + "\n")
	b.WriteString(PadBetween("Subtotal", fmt.Sprintf("%.2f", d.Subtotal)) + "\n")
	if d.Discount != 0 {
		b.WriteString(PadBetween("Discount", fmt.Sprintf("-%.2f", d.Discount)) + "\n")
	}
	for _, tax := range d.Taxes {
		b.WriteString(PadBetween(tax.Label, fmt.Sprintf("%.2f", tax.Amount)) + "\n")
	}
	b.WriteString(divider() + "\n")
	b.WriteString("<b>" + PadBetween("TOTAL", fmt.Sprintf("%.2f", d.Total)) + "</b>\n")
	b.WriteString(divider() + "\n")
	if d.FooterNote != "" {
		b.WriteString("<c>" + d.FooterNote + "</c>\n")
	}
	return b.String()
}

// FormatCancelSlip renders a cancellation slip.
func FormatCancelSlip(d CancelData) string {
	var b strings.Builder
	b.WriteString("<c><b><dh>CANCELLED</dh></b>\n")
	if d.Station != "" {
		b.WriteString(strings.ToUpper(d.Station) + "\n")
	}
	b.WriteString("</c>")
	b.WriteString(divider() + "\n")
	b.WriteString(PadBetween("Ref: "+d.ReferenceNumber, "Table: "+d.TableNumber) + "\n")
	b.WriteString(PadBetween(d.CancelledAt.Format(timeLayout), "By: "+d.CancelledBy) + "\n")
	b.WriteString(divider() + "\n")
	for _, it := range d.Items {
		b.WriteString(PadBetween(it.Name, fmt.Sprintf("%d", it.Qty)) + "\n")
	}
	if d.Reason != "" {
		b.WriteString(divider() + "\n")
		for _, line := range WordWrap("Reason: "+d.Reason, LineWidth) {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString(divider() + "\n")
	return b.String()
}

// FormatTestPage renders a connectivity test page.
func FormatTestPage(d TestData) string {
	var b strings.Builder
	b.WriteString("<c><b><dh>" + d.OutletName + "</dh></b>\n")
	b.WriteString("PRINT TEST\n</c>")
	b.WriteString(divider() + "\n")
	b.WriteString(PadBetween("Printer", d.PrinterName) + "\n")
	b.WriteString(PadBetween("Station", d.Station) + "\n")
	b.WriteString(PadBetween("Time", d.PrintedAt.Format(timeLayout)) + "\n")
	b.WriteString(divider() + "\n")
	b.WriteString("<c>Printer OK!</c>\n")
	return b.String()
}
