package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tourbackend/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedEmail struct {
	auth    string
	path    string
	payload emailPayload
}

func emailServer(t *testing.T, status int, body string) (*httptest.Server, *[]capturedEmail) {
	t.Helper()
	var got []capturedEmail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p emailPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		got = append(got, capturedEmail{auth: r.Header.Get("Authorization"), path: r.URL.Path, payload: p})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func emailBooking(t *testing.T) models.Booking {
	b := ticketBooking(t, 2)
	b.PriceBreakdown = []models.PriceLine{{Label: "Adult day pass", Quantity: 2, UnitPrice: 25, Amount: 50}}
	b.TotalPrice = 50
	return b
}

func TestSendBookingEmailSuccess(t *testing.T) {
	srv, got := emailServer(t, http.StatusOK, `{"id":"em_123"}`)
	svc := EmailService{APIKey: "re_test", APIURL: srv.URL, From: "Tours <t@example.com>", SiteURL: "https://tours.example/", Client: srv.Client()}

	res := svc.SendBookingEmail(context.Background(), emailBooking(t))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "em_123", res.EmailID)
	assert.True(t, res.PDFAttached)

	require.Len(t, *got, 1)
	sent := (*got)[0]
	assert.Equal(t, "Bearer re_test", sent.auth)
	assert.Equal(t, "/emails", sent.path)
	assert.Equal(t, []string{"ana@example.com"}, sent.payload.To)
	assert.Contains(t, sent.payload.Subject, "AA-1234")
	assert.Contains(t, sent.payload.HTML, "Monday, 1 December 2025")
	assert.Contains(t, sent.payload.HTML, "https://tours.example/manage-booking?id=AA-1234")
	assert.Contains(t, sent.payload.HTML, "€50.00")
	assert.Contains(t, sent.payload.Text, "Ticket 2:")
	require.Len(t, sent.payload.Attachments, 1)
	pdf, err := base64.StdEncoding.DecodeString(sent.payload.Attachments[0].Content)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))
	assert.Equal(t, 2, countPDFPages(pdf))
}

func TestSendBookingEmailProviderError(t *testing.T) {
	srv, got := emailServer(t, http.StatusUnprocessableEntity, `{"statusCode":422,"message":"Invalid from address","name":"validation_error"}`)
	svc := EmailService{APIKey: "re_test", APIURL: srv.URL, Client: srv.Client()}

	res := svc.SendBookingEmail(context.Background(), emailBooking(t))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid from address")
	assert.Contains(t, res.Error, "422")
	assert.Len(t, *got, 1)
}

func TestSendBookingEmailWithoutPDF(t *testing.T) {
	srv, got := emailServer(t, http.StatusOK, `{"id":"em_2"}`)
	svc := EmailService{APIKey: "k", APIURL: srv.URL, Client: srv.Client(), Tickets: failingRenderer{}}

	res := svc.SendBookingEmail(context.Background(), emailBooking(t))
	assert.True(t, res.Success)
	assert.False(t, res.PDFAttached)
	require.Len(t, *got, 1)
	assert.Empty(t, (*got)[0].payload.Attachments)
}

func TestSendBookingEmailLocalFailures(t *testing.T) {
	srv, got := emailServer(t, http.StatusOK, `{"id":"x"}`)

	b := emailBooking(t)
	b.ContactInfo.Email = " "
	res := EmailService{APIKey: "k", APIURL: srv.URL, Client: srv.Client()}.SendBookingEmail(context.Background(), b)
	assert.False(t, res.Success)
	assert.Equal(t, "recipient email is required", res.Error)

	res = EmailService{APIURL: srv.URL, Client: srv.Client()}.SendBookingEmail(context.Background(), emailBooking(t))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "EMAIL_API_KEY")

	assert.Empty(t, *got)
}

func TestSendBookingEmailUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := EmailService{APIKey: "k", APIURL: url}.SendBookingEmail(context.Background(), emailBooking(t))
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestRenderBookingEmailEscapesNames(t *testing.T) {
	v := EmailService{SiteURL: "https://x"}.emailView(models.Booking{
		ID:           "AA-1000",
		SelectedDate: "2025-12-01",
		Passengers:   []models.Passenger{{Name: "<script>", Type: "Adult"}},
	})
	html, _, err := renderBookingEmail(v)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}
