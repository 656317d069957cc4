package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"

	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// TicketRenderer builds the PDF ticket for a booking.
type TicketRenderer interface {
	GenerateBookingPDF(ctx context.Context, b models.Booking, qrCodes []string) (TicketPDF, error)
}

// DocsService renders the per-passenger PDF tickets.
type DocsService struct{}

type TicketPDF struct {
	Bytes    []byte
	Pages    int
	Filename string
}

func (t TicketPDF) Base64() string {
	return base64.StdEncoding.EncodeToString(t.Bytes)
}

// ticket layout, A4 portrait in mm
const (
	pageW     = 210.0
	pageH     = 297.0
	margin    = 18.0
	headerH   = 42.0
	footerH   = 22.0
	qrSide    = 80.0
	brandName = "Hop-On Hop-Off Sightseeing"
)

var (
	brandTeal  = [3]int{0x0A, 0x4D, 0x5C}
	brandGold  = [3]int{0xF2, 0xB1, 0x34}
	textDark   = [3]int{0x22, 0x2B, 0x33}
	textMuted  = [3]int{0x6B, 0x75, 0x80}
	panelLight = [3]int{0xF1, 0xF6, 0xF7}
)

var ticketInstructions = []string{
	"Show this QR code to the driver each time you board.",
	"Valid for unlimited hop-on hop-off rides on the date shown.",
	"One ticket per passenger. Screenshots and prints are accepted.",
}

// ShortBookingID is the reference printed on tickets: the first eight
// characters, upper-cased.
func ShortBookingID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// GenerateBookingPDF lays out one A4 page per passenger. qrCodes defaults to
// the booking's stored codes. A QR that cannot be embedded is replaced by a
// placeholder box so the page still renders.
func (s DocsService) GenerateBookingPDF(ctx context.Context, b models.Booking, qrCodes []string) (TicketPDF, error) {
	if len(b.Passengers) == 0 {
		return TicketPDF{}, domain.ValidationError{Field: "passengers", Msg: "booking has no passengers"}
	}
	if qrCodes == nil {
		qrCodes = b.QRCodes
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Tickets "+b.ID, true)
	pdf.SetCreator(brandName, true)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	total := len(b.Passengers)
	for i, p := range b.Passengers {
		pdf.AddPage()
		drawHeader(pdf, tr, i, total)

		qrImage := ""
		if i < len(qrCodes) {
			qrImage = registerQR(ctx, pdf, b.ID, i, qrCodes[i])
		}
		drawPassenger(pdf, tr, b, p, qrImage)
		drawFooter(pdf, tr)
	}

	if pdf.Err() {
		return TicketPDF{}, domain.InternalError{Msg: "render ticket pdf", Err: pdf.Error()}
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return TicketPDF{}, domain.InternalError{Msg: "render ticket pdf", Err: err}
	}

	out := TicketPDF{
		Bytes:    buf.Bytes(),
		Pages:    pdf.PageCount(),
		Filename: fmt.Sprintf("tickets-%s.pdf", utils.SafeFilenamePart(b.ID)),
	}
	utils.LogCtx(ctx, "docs", "generate_tickets", fmt.Sprintf("booking_id=%s pages=%d bytes=%d", b.ID, out.Pages, len(out.Bytes)))
	return out, nil
}

// registerQR loads a QR data URL into the document and returns its image name,
// or "" when it cannot be used.
func registerQR(ctx context.Context, pdf *gofpdf.Fpdf, bookingID string, idx int, dataURL string) string {
	raw, err := DecodeDataURL(dataURL)
	if err == nil {
		_, err = png.DecodeConfig(bytes.NewReader(raw))
	}
	if err != nil {
		utils.LogCtx(ctx, "docs", "qr_invalid", fmt.Sprintf("booking_id=%s passenger=%d err=%v", bookingID, idx, err))
		return ""
	}

	name := fmt.Sprintf("qr-%d", idx)
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(raw))
	if pdf.Err() {
		utils.LogCtx(ctx, "docs", "qr_embed_failed", fmt.Sprintf("booking_id=%s passenger=%d err=%v", bookingID, idx, pdf.Error()))
		pdf.ClearError()
		return ""
	}
	return name
}

// passBadge is the "i / total" page marker; single-passenger tickets have none.
func passBadge(idx, total int) string {
	if total <= 1 {
		return ""
	}
	return fmt.Sprintf("%d / %d", idx+1, total)
}

func drawHeader(pdf *gofpdf.Fpdf, tr func(string) string, idx, total int) {
	pdf.SetFillColor(brandTeal[0], brandTeal[1], brandTeal[2])
	pdf.Rect(0, 0, pageW, headerH, "F")
	pdf.SetFillColor(brandGold[0], brandGold[1], brandGold[2])
	pdf.Rect(0, headerH, pageW, 2, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(margin, 12)
	pdf.CellFormat(0, 10, tr(brandName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetX(margin)
	pdf.CellFormat(0, 7, tr("Day Pass · Boarding Ticket"), "", 1, "L", false, 0, "")

	if badge := passBadge(idx, total); badge != "" {
		pdf.SetFillColor(brandGold[0], brandGold[1], brandGold[2])
		pdf.SetTextColor(textDark[0], textDark[1], textDark[2])
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetXY(pageW-margin-28, 15)
		pdf.CellFormat(28, 10, badge, "", 0, "C", true, 0, "")
	}
}

func drawPassenger(pdf *gofpdf.Fpdf, tr func(string) string, b models.Booking, p models.Passenger, qrImage string) {
	qrX := (pageW - qrSide) / 2
	qrY := headerH + 16.0

	if qrImage != "" {
		pdf.ImageOptions(qrImage, qrX, qrY, qrSide, qrSide, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	} else {
		pdf.SetDrawColor(textMuted[0], textMuted[1], textMuted[2])
		pdf.SetFillColor(panelLight[0], panelLight[1], panelLight[2])
		pdf.Rect(qrX, qrY, qrSide, qrSide, "FD")
		pdf.SetTextColor(textMuted[0], textMuted[1], textMuted[2])
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetXY(qrX, qrY+qrSide/2-8)
		pdf.MultiCell(qrSide, 5, tr("QR code unavailable\nShow booking reference "+ShortBookingID(b.ID)), "", "C", false)
	}

	y := qrY + qrSide + 10
	pdf.SetTextColor(textDark[0], textDark[1], textDark[2])
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetXY(margin, y)
	pdf.CellFormat(pageW-2*margin, 11, tr(strings.ToUpper(utils.Fallback(p.Name, "Passenger"))), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 13)
	pdf.SetTextColor(brandTeal[0], brandTeal[1], brandTeal[2])
	pdf.SetX(margin)
	pdf.CellFormat(pageW-2*margin, 8, tr(utils.Fallback(p.Type, models.PassengerAdult)+" Pass"), "", 1, "C", false, 0, "")

	y = pdf.GetY() + 6
	pdf.SetFillColor(panelLight[0], panelLight[1], panelLight[2])
	pdf.Rect(margin, y, pageW-2*margin, 26, "F")
	colW := (pageW - 2*margin) / 2
	detail := func(x float64, label, value string) {
		pdf.SetXY(x, y+4)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(textMuted[0], textMuted[1], textMuted[2])
		pdf.CellFormat(colW, 5, tr(label), "", 2, "C", false, 0, "")
		pdf.SetFont("Helvetica", "B", 13)
		pdf.SetTextColor(textDark[0], textDark[1], textDark[2])
		pdf.CellFormat(colW, 9, tr(value), "", 0, "C", false, 0, "")
	}
	detail(margin, "VALID ON", utils.FormatLongDate(b.SelectedDate))
	detail(margin+colW, "BOOKING", ShortBookingID(b.ID))

	pdf.SetXY(margin, y+34)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(textDark[0], textDark[1], textDark[2])
	pdf.CellFormat(0, 7, tr("How to use your ticket"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(textMuted[0], textMuted[1], textMuted[2])
	for _, line := range ticketInstructions {
		pdf.SetX(margin)
		pdf.CellFormat(0, 6, tr("- "+line), "", 1, "L", false, 0, "")
	}
}

func drawFooter(pdf *gofpdf.Fpdf, tr func(string) string) {
	pdf.SetFillColor(brandTeal[0], brandTeal[1], brandTeal[2])
	pdf.Rect(0, pageH-footerH, pageW, footerH, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(margin, pageH-footerH+6)
	pdf.CellFormat(pageW-2*margin, 5, tr(brandName+" · Thank you for riding with us"), "", 1, "C", false, 0, "")
	pdf.SetX(margin)
	pdf.CellFormat(pageW-2*margin, 5, tr("Manage your booking online with your booking reference"), "", 1, "C", false, 0, "")
}
