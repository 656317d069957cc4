package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"tourbackend/internal/domain"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	qrImageSize   = 300
	qrMarginCells = 2
	pngDataURL    = "data:image/png;base64,"
)

var (
	qrDark  = color.RGBA{R: 0x0A, G: 0x4D, B: 0x5C, A: 0xFF}
	qrLight = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// QRPayload is what a passenger QR encodes: "<bookingId>|<passengerIndex>".
type QRPayload struct {
	BookingID      string `json:"bookingId"`
	PassengerIndex int    `json:"passengerIndex"`
}

func (p QRPayload) String() string {
	return fmt.Sprintf("%s|%d", p.BookingID, p.PassengerIndex)
}

// ParseQRPayload reads a scanned "<bookingId>|<passengerIndex>" QR text. The
// index must be plain decimal digits.
func ParseQRPayload(raw string) (QRPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return QRPayload{}, domain.ValidationError{Field: "qrData", Msg: "QR data is required"}
	}
	id, idx, found := strings.Cut(raw, "|")
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return QRPayload{}, domain.ValidationError{Field: "qrData", Msg: "QR code has no booking id"}
	}
	if !found {
		return QRPayload{}, domain.ValidationError{Field: "qrData", Msg: "QR code has no passenger index"}
	}
	idx = strings.TrimSpace(idx)
	if idx == "" || strings.TrimLeft(idx, "0123456789") != "" {
		return QRPayload{}, domain.ValidationError{Field: "qrData", Msg: "invalid passenger index in QR code"}
	}
	n, err := strconv.Atoi(idx)
	if err != nil {
		return QRPayload{}, domain.ValidationError{Field: "qrData", Msg: "invalid passenger index in QR code"}
	}
	return QRPayload{BookingID: id, PassengerIndex: n}, nil
}

// GenerateQRCode renders the passenger QR as a PNG data URL.
func GenerateQRCode(bookingID string, passengerIndex int) (string, error) {
	raw, err := RenderQRPNG(QRPayload{BookingID: bookingID, PassengerIndex: passengerIndex}.String())
	if err != nil {
		return "", err
	}
	return pngDataURL + base64.StdEncoding.EncodeToString(raw), nil
}

// GenerateQRCodes returns one data URL per passenger, in passenger order.
func GenerateQRCodes(bookingID string, passengers int) ([]string, error) {
	out := make([]string, passengers)
	for i := range out {
		code, err := GenerateQRCode(bookingID, i)
		if err != nil {
			return nil, fmt.Errorf("qr for passenger %d: %w", i, err)
		}
		out[i] = code
	}
	return out, nil
}

// RenderQRPNG encodes content with medium error correction into a square PNG
// of qrImageSize pixels in the brand colours.
func RenderQRPNG(content string) ([]byte, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	qr.DisableBorder = true
	bitmap := qr.Bitmap()

	cells := len(bitmap) + 2*qrMarginCells
	scale := qrImageSize / cells
	if scale < 1 {
		scale = 1
	}
	size := qrImageSize
	if cells*scale > size {
		size = cells * scale
	}
	offset := (size-cells*scale)/2 + qrMarginCells*scale

	img := image.NewPaletted(image.Rect(0, 0, size, size), color.Palette{qrLight, qrDark})
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0, y0 := offset+x*scale, offset+y*scale
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetColorIndex(x0+dx, y0+dy, 1)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeDataURL returns the PNG bytes behind a data URL produced by
// GenerateQRCode.
func DecodeDataURL(dataURL string) ([]byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(dataURL), pngDataURL)
	if !ok {
		return nil, fmt.Errorf("not a png data url")
	}
	return base64.StdEncoding.DecodeString(rest)
}
