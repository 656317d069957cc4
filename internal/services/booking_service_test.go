package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/kv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioNow = time.Date(2025, 11, 20, 9, 30, 0, 0, time.UTC)

func TestCreateBookingScenarioTwoAdults(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	svc, mailer := newBookingService(t, store, scenarioNow)

	req := adultsRequest("2025-12-01", 2)
	req.TotalPrice = 50
	res, err := svc.Create(ctx, req)
	require.NoError(t, err)

	b := res.Booking
	assert.Regexp(t, `^[A-Z]{2}-\d{4}$`, b.ID)
	assert.Equal(t, "2025-12-01", b.SelectedDate)
	assert.Equal(t, 50.0, b.TotalPrice)
	assert.Equal(t, models.StatusCreated, b.Status)
	assert.Equal(t, "ana@example.com", b.ContactInfo.Email)
	require.Len(t, b.QRCodes, 2)
	assert.Empty(t, b.CheckIns)
	assert.Equal(t, []models.PriceLine{{Label: "Adult day pass", Quantity: 2, UnitPrice: 25, Amount: 50}}, b.PriceBreakdown)
	assert.Equal(t, 1, mailer.calls)
	assert.True(t, res.Email.Success)

	for i, code := range b.QRCodes {
		text, _ := decodeQRDataURL(t, code)
		assert.Equal(t, QRPayload{BookingID: b.ID, PassengerIndex: i}.String(), text)
	}

	pdf, err := svc.TicketPDF(ctx, strings.ToLower(b.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, pdf.Pages)
	assert.Equal(t, 2, countPDFPages(pdf.Bytes))
}

func TestCreateBookingIDsUnique(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	svc, _ := newBookingService(t, store, scenarioNow)

	seen := map[string]bool{}
	for i := 0; i < 150; i++ {
		req := adultsRequest("2025-12-01", 1)
		req.SkipEmail = true
		res, err := svc.Create(ctx, req)
		require.NoError(t, err)
		require.Regexp(t, bookingIDPattern, res.Booking.ID)
		require.False(t, seen[res.Booking.ID], "duplicate id %s", res.Booking.ID)
		seen[res.Booking.ID] = true
	}
	n, err := svc.Bookings.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150, n)
}

func TestCreateBookingConcurrentUnique(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	svc, _ := newBookingService(t, store, scenarioNow)

	const workers = 20
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := adultsRequest("2025-12-01", 1)
			req.SkipEmail = true
			res, err := svc.Create(ctx, req)
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids <- res.Booking.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}

// racingStore lets another writer claim the first booking key this process
// tries to insert.
type racingStore struct {
	kv.Store
	raced bool
}

func (s *racingStore) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	if !s.raced && strings.HasPrefix(key, "booking:") && key != "booking_current_prefix" {
		s.raced = true
		if err := s.Store.Set(ctx, key, []byte(`{"id":"other"}`)); err != nil {
			return false, err
		}
	}
	return s.Store.SetIfAbsent(ctx, key, value)
}

func TestCreateBookingRetriesLostClaim(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{Store: kv.NewMemoryStore()}
	svc, _ := newBookingService(t, store, scenarioNow)
	draws := []int{1, 2}
	svc.IDs.IntN = func(int) int {
		d := draws[0]
		draws = draws[1:]
		return d
	}

	req := adultsRequest("2025-12-01", 1)
	req.SkipEmail = true
	res, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.True(t, store.raced)
	assert.Equal(t, "AA-1002", res.Booking.ID)

	other, err := store.Get(ctx, "booking:AA-1001")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"other"}`, string(other))
}

func TestCreateBookingSkipEmail(t *testing.T) {
	svc, mailer := newBookingService(t, kv.NewMemoryStore(), scenarioNow)
	req := adultsRequest("2025-12-01", 1)
	req.SkipEmail = true

	res, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, mailer.calls)
	assert.Equal(t, EmailResult{Success: true, Skipped: true}, res.Email)
}

func TestCreateBookingEmailFailureKeepsBooking(t *testing.T) {
	ctx := context.Background()
	svc, mailer := newBookingService(t, kv.NewMemoryStore(), scenarioNow)
	mailer.result = EmailResult{Error: "email provider returned 500: boom"}

	res, err := svc.Create(ctx, adultsRequest("2025-12-01", 2))
	require.NoError(t, err)
	assert.False(t, res.Email.Success)
	assert.Equal(t, "email provider returned 500: boom", res.Email.Error)

	stored, err := svc.Get(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Booking.ID, stored.ID)
	assert.Len(t, stored.QRCodes, 2)
}

func TestCreateBookingQRFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	svc, mailer := newBookingService(t, kv.NewMemoryStore(), scenarioNow)
	svc.QRCodes = func(string, int) ([]string, error) {
		return nil, errors.New("encoder exploded")
	}

	_, err := svc.Create(ctx, adultsRequest("2025-12-01", 2))
	require.Error(t, err)
	assert.True(t, domain.IsInternal(err))

	n, err := svc.Bookings.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, mailer.calls)
}

func TestCreateBookingValidation(t *testing.T) {
	svc, _ := newBookingService(t, kv.NewMemoryStore(), scenarioNow)

	cases := map[string]func(r *models.BookingRequest){
		"bad date":        func(r *models.BookingRequest) { r.SelectedDate = "01/12/2025" },
		"no passengers":   func(r *models.BookingRequest) { r.Passengers = nil },
		"no email":        func(r *models.BookingRequest) { r.ContactInfo.Email = "" },
		"negative total":  func(r *models.BookingRequest) { r.TotalPrice = -1 },
		"unknown type":    func(r *models.BookingRequest) { r.Passengers[0].Type = "senior" },
		"blank name":      func(r *models.BookingRequest) { r.Passengers[0].Name = "  " },
		"payment missing": func(r *models.BookingRequest) { r.TestMode = false },
	}
	for name, mutate := range cases {
		req := adultsRequest("2025-12-01", 1)
		mutate(&req)
		_, err := svc.Create(context.Background(), req)
		if !domain.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	n, err := svc.Bookings.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetBookingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	svc, _ := newBookingService(t, store, scenarioNow)
	res, err := svc.Create(ctx, adultsRequest("2025-12-01", 2))
	require.NoError(t, err)

	before, err := store.Get(ctx, "booking:"+res.Booking.ID)
	require.NoError(t, err)

	first, err := svc.Get(ctx, res.Booking.ID)
	require.NoError(t, err)
	second, err := svc.Get(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, res.Booking.QRCodes, first.QRCodes)

	after, err := store.Get(ctx, "booking:"+res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGetBookingReportsExpiredWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	svc, _ := newBookingService(t, store, scenarioNow)
	res, err := svc.Create(ctx, adultsRequest("2025-12-01", 1))
	require.NoError(t, err)

	svc.Now = fixedClock(time.Date(2025, 12, 2, 8, 0, 0, 0, time.UTC))
	b, err := svc.Get(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, b.Status)

	stored, err := svc.Bookings.GetByID(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, stored.Status)
}

func TestGetBookingNotFound(t *testing.T) {
	svc, _ := newBookingService(t, kv.NewMemoryStore(), scenarioNow)
	_, err := svc.Get(context.Background(), "ZZ-0000")
	assert.True(t, domain.IsNotFound(err))
}

func TestListBookingsFilters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBookingService(t, kv.NewMemoryStore(), scenarioNow)

	for i, date := range []string{"2025-12-01", "2025-12-01", "2025-12-02"} {
		req := adultsRequest(date, 1)
		req.SkipEmail = true
		if i == 2 {
			req.ContactInfo.Email = "other@example.com"
		}
		svc.Now = fixedClock(scenarioNow.Add(time.Duration(i) * time.Minute))
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	all, page, err := svc.List(ctx, BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "2025-12-02", all[0].SelectedDate, "newest first")

	byDate, _, err := svc.List(ctx, BookingFilter{Date: "2025-12-01"})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	byEmail, _, err := svc.List(ctx, BookingFilter{Email: "OTHER@example.com"})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "2025-12-02", byEmail[0].SelectedDate)

	paged, page, err := svc.List(ctx, BookingFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
	assert.Equal(t, 3, page.Total)
}

func TestResendEmail(t *testing.T) {
	ctx := context.Background()
	svc, mailer := newBookingService(t, kv.NewMemoryStore(), scenarioNow)
	req := adultsRequest("2025-12-01", 1)
	req.SkipEmail = true
	res, err := svc.Create(ctx, req)
	require.NoError(t, err)

	out, err := svc.ResendEmail(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, mailer.calls)

	_, err = svc.ResendEmail(ctx, "QQ-1111")
	assert.True(t, domain.IsNotFound(err))
}

func TestSamplePDF(t *testing.T) {
	svc, _ := newBookingService(t, kv.NewMemoryStore(), scenarioNow)
	pdf, b, err := svc.SamplePDF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pdf.Pages)
	assert.Len(t, b.QRCodes, 2)
}
