package services

import (
	"context"
	"testing"
	"time"

	"tourbackend/internal/domain/models"
	"tourbackend/internal/kv"
	"tourbackend/internal/repositories"
)

type fakeMailer struct {
	calls  int
	result EmailResult
}

func (m *fakeMailer) SendBookingEmail(ctx context.Context, b models.Booking) EmailResult {
	m.calls++
	return m.result
}

type failingRenderer struct{}

func (failingRenderer) GenerateBookingPDF(ctx context.Context, b models.Booking, qr []string) (TicketPDF, error) {
	return TicketPDF{}, context.DeadlineExceeded
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newBookingService(t *testing.T, store kv.Store, now time.Time) (BookingService, *fakeMailer) {
	t.Helper()
	mailer := &fakeMailer{result: EmailResult{Success: true, EmailID: "em_1", PDFAttached: true}}
	svc := BookingService{
		Bookings: repositories.BookingRepository{Store: store},
		Pricing:  repositories.PricingRepository{Store: store},
		Mailer:   mailer,
		Location: time.UTC,
		Now:      fixedClock(now),
	}
	return svc, mailer
}

func adultsRequest(date string, n int) models.BookingRequest {
	req := models.BookingRequest{
		SelectedDate: date,
		ContactInfo:  models.ContactInfoInput{Name: "Ana Costa", Email: "Ana@Example.com", Phone: "+351 900 000 000"},
		TotalPrice:   25 * float64(n),
		TestMode:     true,
	}
	for i := 0; i < n; i++ {
		req.Passengers = append(req.Passengers, models.PassengerInput{Name: "Passenger " + string(rune('A'+i)), Type: "adult"})
	}
	return req
}
