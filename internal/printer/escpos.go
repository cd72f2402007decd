package printer

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/model"
)

// --- ESC/POS Serialization ---

var (
	cmdInit        = []byte{0x1B, 0x40}             // ESC @
	cmdBoldOn      = []byte{0x1B, 0x45, 0x01}       // ESC E 1
	cmdBoldOff     = []byte{0x1B, 0x45, 0x00}       // ESC E 0
	cmdAlignLeft   = []byte{0x1B, 0x61, 0x00}       // ESC a 0
	cmdAlignCenter = []byte{0x1B, 0x61, 0x01}       // ESC a 1
	cmdFeed3       = []byte{0x1B, 0x64, 0x03}       // ESC d 3
	cmdPartialCut  = []byte{0x1D, 0x56, 0x41, 0x00} // GS V A 0
)

// Serializer turns a ReceiptDocument into the ESC/POS byte stream. Output is
// deterministic for a given document and logo.
type Serializer struct {
	Logo []byte // pre-rasterized GS v 0 block, optional
}

func NewSerializer(logo []byte) *Serializer {
	return &Serializer{Logo: logo}
}

func (s *Serializer) Serialize(doc model.ReceiptDocument) []byte {
	var buf bytes.Buffer
	buf.Write(cmdInit)

	if len(s.Logo) > 0 {
		buf.Write(cmdAlignCenter)
		buf.Write(s.Logo)
		buf.Write(cmdAlignLeft)
	}

	for _, line := range doc.Lines {
		switch line.Style {
		case model.StyleBold:
			buf.Write(cmdBoldOn)
			buf.WriteString(line.Text)
			buf.WriteByte('\n')
			buf.Write(cmdBoldOff)
		case model.StyleCentered:
			buf.Write(cmdAlignCenter)
			buf.WriteString(line.Text)
			buf.WriteByte('\n')
			buf.Write(cmdAlignLeft)
		case model.StyleCenteredBold:
			buf.Write(cmdAlignCenter)
			buf.Write(cmdBoldOn)
			buf.WriteString(line.Text)
			buf.WriteByte('\n')
			buf.Write(cmdBoldOff)
			buf.Write(cmdAlignLeft)
		case model.StyleCut:
			buf.Write(cmdFeed3)
			buf.Write(cmdPartialCut)
		default:
			buf.WriteString(line.Text)
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes()
}

// LoadLogoRaster reads a PNG and converts it to an ESC/POS raster block at
// the given pixel width (384 for 58mm paper, 576 for 80mm).
func LoadLogoRaster(path string, targetWidth int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open logo: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}

	return RasterFromImage(resizeToWidth(img, targetWidth)), nil
}

// RasterFromImage converts an image to a 1-bit GS v 0 raster block.
func RasterFromImage(img image.Image) []byte {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// ESC/POS width must be divisible by 8
	if width%8 != 0 {
		width = width - (width % 8)
	}

	rowBytes := width / 8
	raster := make([]byte, rowBytes*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			gray := (r + g + b) / 3

			if gray < 0x8000 { // threshold
				byteIndex := y*rowBytes + x/8
				raster[byteIndex] |= 1 << (7 - uint(x%8))
			}
		}
	}

	header := []byte{
		0x1D, 0x76, 0x30, 0x00,
		byte(rowBytes), byte(rowBytes >> 8),
		byte(height), byte(height >> 8),
	}

	return append(header, raster...)
}

func resizeToWidth(src image.Image, targetWidth int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w == targetWidth {
		return src
	}

	scale := float64(targetWidth) / float64(w)
	newHeight := int(float64(h) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, newHeight))
	for y := 0; y < newHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			sx := bounds.Min.X + int(float64(x)/scale)
			sy := bounds.Min.Y + int(float64(y)/scale)
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
