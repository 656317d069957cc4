package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"tourbackend/internal/domain/models"
	"tourbackend/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const emailClientTimeout = 10 * time.Second

// EmailResult is reported next to the booking; a failed email never fails the
// booking itself.
type EmailResult struct {
	Success     bool   `json:"success"`
	EmailID     string `json:"emailId,omitempty"`
	PDFAttached bool   `json:"pdfAttached"`
	Skipped     bool   `json:"skipped,omitempty"`
	Error       string `json:"error,omitempty"`
}

// EmailService posts booking confirmations to a Resend-compatible API.
type EmailService struct {
	APIKey  string
	APIURL  string
	From    string
	SiteURL string
	Client  *http.Client
	Tickets TicketRenderer
}

type emailAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type emailPayload struct {
	From        string            `json:"from"`
	To          []string          `json:"to"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html"`
	Text        string            `json:"text"`
	Attachments []emailAttachment `json:"attachments,omitempty"`
}

func (s EmailService) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{
		Timeout:   emailClientTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func (s EmailService) tickets() TicketRenderer {
	if s.Tickets != nil {
		return s.Tickets
	}
	return DocsService{}
}

// ManageURL is the customer link to a booking.
func (s EmailService) ManageURL(bookingID string) string {
	return strings.TrimRight(s.SiteURL, "/") + "/manage-booking?id=" + bookingID
}

// SendBookingEmail renders and sends the confirmation for b. It reports every
// failure in the result instead of returning an error.
func (s EmailService) SendBookingEmail(ctx context.Context, b models.Booking) EmailResult {
	to := utils.NormalizeEmail(b.ContactInfo.Email)
	if to == "" {
		utils.LogCtx(ctx, "email", "no_recipient", "booking_id="+b.ID)
		return EmailResult{Error: "recipient email is required"}
	}
	if strings.TrimSpace(s.APIKey) == "" {
		utils.LogCtx(ctx, "email", "not_configured", "booking_id="+b.ID)
		return EmailResult{Error: "email service not configured: EMAIL_API_KEY is missing"}
	}

	htmlBody, textBody, err := renderBookingEmail(s.emailView(b))
	if err != nil {
		utils.LogCtx(ctx, "email", "render_failed", fmt.Sprintf("booking_id=%s err=%v", b.ID, err))
		return EmailResult{Error: "render email: " + err.Error()}
	}

	payload := emailPayload{
		From:    s.From,
		To:      []string{to},
		Subject: fmt.Sprintf("Your Hop-On Hop-Off tickets - Booking %s", b.ID),
		HTML:    htmlBody,
		Text:    textBody,
	}

	result := EmailResult{}
	ticket, err := s.tickets().GenerateBookingPDF(ctx, b, b.QRCodes)
	if err != nil {
		utils.LogCtx(ctx, "email", "pdf_failed", fmt.Sprintf("booking_id=%s err=%v", b.ID, err))
	} else {
		payload.Attachments = []emailAttachment{{Filename: ticket.Filename, Content: ticket.Base64()}}
		result.PDFAttached = true
	}

	id, err := s.post(ctx, payload)
	if err != nil {
		utils.LogCtx(ctx, "email", "send_failed", fmt.Sprintf("booking_id=%s err=%v", b.ID, err))
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.EmailID = id
	utils.LogCtx(ctx, "email", "sent", fmt.Sprintf("booking_id=%s email_id=%s pdf=%t", b.ID, id, result.PDFAttached))
	return result
}

func (s EmailService) post(ctx context.Context, payload emailPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	url := strings.TrimRight(s.APIURL, "/") + "/emails"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed struct {
		ID      string `json:"id"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := utils.Fallback(parsed.Message, parsed.Error)
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", fmt.Errorf("email provider returned %d: %s", resp.StatusCode, utils.Fallback(msg, http.StatusText(resp.StatusCode)))
	}
	return parsed.ID, nil
}

type emailView struct {
	BookingID  string
	Name       string
	Date       string
	Passengers []models.Passenger
	Lines      []emailLine
	Total      string
	ManageURL  string
}

type emailLine struct {
	Label  string
	Amount string
}

func (s EmailService) emailView(b models.Booking) emailView {
	v := emailView{
		BookingID:  b.ID,
		Name:       utils.Fallback(b.ContactInfo.Name, "traveller"),
		Date:       utils.FormatLongDate(b.SelectedDate),
		Passengers: b.Passengers,
		Total:      utils.FormatEuro(b.TotalPrice),
		ManageURL:  s.ManageURL(b.ID),
	}
	for _, l := range b.PriceBreakdown {
		label := l.Label
		if l.Quantity > 1 {
			label = fmt.Sprintf("%s x %d", l.Label, l.Quantity)
		}
		v.Lines = append(v.Lines, emailLine{Label: label, Amount: utils.FormatEuro(l.Amount)})
	}
	return v
}

var bookingEmailHTML = template.Must(template.New("booking").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html><body style="margin:0;background:#f1f6f7;font-family:Helvetica,Arial,sans-serif;color:#222b33">
<div style="max-width:600px;margin:0 auto;background:#ffffff">
  <div style="background:#0A4D5C;color:#ffffff;padding:28px 24px">
    <h1 style="margin:0;font-size:22px">Your tickets are confirmed</h1>
    <p style="margin:6px 0 0">Booking <strong>{{.BookingID}}</strong></p>
  </div>
  <div style="padding:24px">
    <p>Hi {{.Name}},</p>
    <p>Thank you for booking with us. Your day pass is valid on <strong>{{.Date}}</strong>.</p>
    {{range $i, $p := .Passengers}}
    <div style="border:1px solid #d6e3e6;border-left:6px solid #F2B134;border-radius:6px;padding:12px 16px;margin:10px 0">
      <div style="font-size:12px;color:#6b7580">Ticket {{inc $i}}</div>
      <div style="font-size:16px;font-weight:bold">{{$p.Name}}</div>
      <div style="color:#0A4D5C">{{$p.Type}} Pass</div>
    </div>
    {{end}}
    {{if .Lines}}
    <table style="width:100%;border-collapse:collapse;margin-top:16px">
      {{range .Lines}}<tr><td style="padding:4px 0">{{.Label}}</td><td style="padding:4px 0;text-align:right">{{.Amount}}</td></tr>{{end}}
    </table>
    {{end}}
    <p style="font-size:18px;font-weight:bold;text-align:right;border-top:2px solid #0A4D5C;padding-top:8px">Total {{.Total}}</p>
    <p>Your QR tickets are attached as a PDF. Show one QR code per passenger when boarding.</p>
    <p><a href="{{.ManageURL}}" style="display:inline-block;background:#0A4D5C;color:#ffffff;padding:10px 18px;border-radius:4px;text-decoration:none">Manage booking</a></p>
  </div>
</div>
</body></html>`))

func renderBookingEmail(v emailView) (string, string, error) {
	var html bytes.Buffer
	if err := bookingEmailHTML.Execute(&html, v); err != nil {
		return "", "", err
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nYour Hop-On Hop-Off booking %s is confirmed for %s.\n\n", v.Name, v.BookingID, v.Date)
	for i, p := range v.Passengers {
		fmt.Fprintf(&text, "Ticket %d: %s (%s)\n", i+1, p.Name, p.Type)
	}
	if len(v.Lines) > 0 {
		text.WriteString("\n")
		for _, l := range v.Lines {
			fmt.Fprintf(&text, "%s: %s\n", l.Label, l.Amount)
		}
	}
	fmt.Fprintf(&text, "\nTotal: %s\n\nManage your booking: %s\n", v.Total, v.ManageURL)
	return html.String(), text.String(), nil
}
