// Package escpos produces printer-ready ESC/POS byte streams for thermal
// printers. All functions are pure byte producers; the only I/O is image
// loading in the rasterizer.
package escpos

import "strings"

// Control sequences. See the ESC/POS convention: ESC (0x1B) and GS (0x1D)
// prefixed commands understood by most thermal receipt printers.
var (
	seqInit        = []byte{0x1B, 0x40}                   // ESC @  initialize
	seqBeep        = []byte{0x1B, 0x42, 0x03, 0x02}       // ESC B n t  beep 3 times
	seqBoldOn      = []byte{0x1B, 0x45, 0x01}             // ESC E 1
	seqBoldOff     = []byte{0x1B, 0x45, 0x00}             // ESC E 0
	seqAlignLeft   = []byte{0x1B, 0x61, 0x00}             // ESC a 0
	seqAlignCenter = []byte{0x1B, 0x61, 0x01}             // ESC a 1
	seqAlignRight  = []byte{0x1B, 0x61, 0x02}             // ESC a 2
	seqDoubleOn    = []byte{0x1D, 0x21, 0x11}             // GS ! double width+height
	seqDoubleOff   = []byte{0x1D, 0x21, 0x00}             // GS ! normal
	seqCutFull     = []byte{0x1D, 0x56, 0x00}             // GS V 0
	seqCutPartial  = []byte{0x1D, 0x56, 0x01}             // GS V 1
	seqDrawerKick  = []byte{0x1B, 0x70, 0x00, 0x19, 0xFA} // ESC p 0 t1 t2

	seqLineSpacing24      = []byte{0x1B, 0x33, 24} // ESC 3 n  spacing in dots
	seqLineSpacingDefault = []byte{0x1B, 0x32}     // ESC 2
)

func feed(n byte) []byte { return []byte{0x1B, 0x64, n} } // ESC d n

// Options selects the sequences Wrap adds around a formatted document.
type Options struct {
	Beep       bool
	Cut        bool
	PartialCut bool
	OpenDrawer bool
	// Logo is an already-rasterized bit-image stream (see ImageToBitmap),
	// printed before the text.
	Logo []byte
}

// markupReplacer translates the inline tags the formatters embed into real
// control sequences. Closing an alignment tag returns to left alignment.
var markupReplacer = strings.NewReplacer(
	"<b>", string(seqBoldOn),
	"</b>", string(seqBoldOff),
	"<dh>", string(seqDoubleOn),
	"</dh>", string(seqDoubleOff),
	"<c>", string(seqAlignCenter),
	"</c>", string(seqAlignLeft),
	"<r>", string(seqAlignRight),
	"</r>", string(seqAlignLeft),
)

// Wrap turns a formatted text document into a complete ESC/POS payload.
//
// The emit order is a hard contract: initialize, beep, logo, text, feed,
// cut, drawer kick. The drawer must kick only after the receipt is fully
// printed and cut.
func Wrap(text string, opts Options) []byte {
	out := make([]byte, 0, len(text)+64+len(opts.Logo))
	out = append(out, seqInit...)
	if opts.Beep {
		out = append(out, seqBeep...)
	}
	if len(opts.Logo) > 0 {
		out = append(out, seqAlignCenter...)
		out = append(out, opts.Logo...)
		out = append(out, seqAlignLeft...)
	}
	out = append(out, []byte(markupReplacer.Replace(text))...)
	out = append(out, feed(4)...)
	if opts.Cut || opts.PartialCut {
		if opts.PartialCut {
			out = append(out, seqCutPartial...)
		} else {
			out = append(out, seqCutFull...)
		}
	}
	if opts.OpenDrawer {
		out = append(out, seqDrawerKick...)
	}
	return out
}

// DrawerPulse is the standalone payload for a cash-drawer job: no paper
// output, just the kick sequence.
func DrawerPulse() []byte {
	out := make([]byte, 0, len(seqInit)+len(seqDrawerKick))
	out = append(out, seqInit...)
	out = append(out, seqDrawerKick...)
	return out
}
