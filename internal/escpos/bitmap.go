package escpos

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	// Register the decoders logo files realistically come in.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// sliceHeight is the number of print-head dots covered by one ESC * pass in
// 24-dot bit-image mode: 24 rows packed into 3 bytes per column.
const sliceHeight = 24

// BitmapOptions bounds and thresholds the rasterizer.
type BitmapOptions struct {
	MaxWidth  int
	MaxHeight int
	// Threshold is the grayscale cut-off: a pixel darker than Threshold
	// becomes a set (printed) bit.
	Threshold int
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// ImageToBitmap loads an image from a local path or URL and converts it to
// an ESC/POS column-major bit-image command stream: for every 24-pixel
// vertical slice, a "select bit-image mode" command carrying the slice's
// pixel width, 3 bytes per column MSB-first, then a line feed. Line spacing
// is pinned to 24 dots before the first slice and restored afterwards.
func ImageToBitmap(source string, opts BitmapOptions) ([]byte, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = 384
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = 240
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 128
	}

	img, err := loadImage(source)
	if err != nil {
		return nil, err
	}

	gray := flattenToGray(img)
	normalizeContrast(gray)
	gray = fitToBounds(gray, opts.MaxWidth, opts.MaxHeight)

	return EncodeBitImage(gray, opts.Threshold), nil
}

// EncodeBitImage packs a grayscale image into the 24-dot bit-image stream.
// Exposed separately so synthetic images can be encoded without file I/O.
func EncodeBitImage(gray *image.Gray, threshold int) []byte {
	w := gray.Bounds().Dx()
	h := gray.Bounds().Dy()

	out := make([]byte, 0, (h/sliceHeight+1)*(5+3*w+1)+8)
	out = append(out, seqLineSpacing24...)

	for y0 := 0; y0 < h; y0 += sliceHeight {
		// ESC * m=33 nL nH: 24-dot double-density mode, n columns.
		out = append(out, 0x1B, 0x2A, 33, byte(w&0xFF), byte((w>>8)&0xFF))
		for x := 0; x < w; x++ {
			var col [3]byte
			for k := 0; k < sliceHeight; k++ {
				y := y0 + k
				if y >= h {
					break
				}
				if int(gray.GrayAt(x, y).Y) < threshold {
					col[k/8] |= 0x80 >> (k % 8)
				}
			}
			out = append(out, col[0], col[1], col[2])
		}
		out = append(out, '\n')
	}

	out = append(out, seqLineSpacingDefault...)
	return out
}

func loadImage(source string) (image.Image, error) {
	var r io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := httpClient.Get(source)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch image %q: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to fetch image %q: status %d", source, resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open image %q: %w", source, err)
		}
		r = f
	}
	defer r.Close()

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %q: %w", source, err)
	}
	return img, nil
}

// flattenToGray composites the image over a white background and converts
// to 8-bit grayscale. Transparent regions come out white, not black.
func flattenToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			// Luma of the pixel itself, then composited over white by alpha.
			luma := (299*int(c.R) + 587*int(c.G) + 114*int(c.B)) / 1000
			a := int(c.A)
			v := (luma*a + 255*(255-a)) / 255
			gray.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: uint8(v)})
		}
	}
	return gray
}

// normalizeContrast stretches the gray range to the full 0..255 span. A
// constant image is left untouched.
func normalizeContrast(gray *image.Gray) {
	minV, maxV := 255, 0
	for _, v := range gray.Pix {
		if int(v) < minV {
			minV = int(v)
		}
		if int(v) > maxV {
			maxV = int(v)
		}
	}
	if maxV <= minV {
		return
	}
	for i, v := range gray.Pix {
		gray.Pix[i] = uint8((int(v) - minV) * 255 / (maxV - minV))
	}
}

// fitToBounds resizes preserving aspect ratio so the width is a multiple of
// 8 and both dimensions respect the bounds. Images already inside the
// bounds with an aligned width are returned unchanged.
func fitToBounds(gray *image.Gray, maxW, maxH int) *image.Gray {
	w := gray.Bounds().Dx()
	h := gray.Bounds().Dy()
	if w <= maxW && h <= maxH && w%8 == 0 {
		return gray
	}

	scale := 1.0
	if w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}

	dstW := (int(float64(w)*scale) / 8) * 8
	if dstW < 8 {
		dstW = 8
	}
	dstH := int(float64(h) * float64(dstW) / float64(w))
	if dstH < 1 {
		dstH = 1
	}
	if dstH > maxH {
		dstH = maxH
	}

	dst := image.NewGray(image.Rect(0, 0, dstW, dstH))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), gray, gray.Bounds(), xdraw.Src, nil)
	return dst
}
