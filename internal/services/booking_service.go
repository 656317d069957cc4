package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/repositories"
	"tourbackend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxBookingClaims = 3

var tracer = otel.Tracer("tourbackend/services")

// Mailer sends booking confirmations.
type Mailer interface {
	SendBookingEmail(ctx context.Context, b models.Booking) EmailResult
}

type BookingService struct {
	Bookings repositories.BookingRepository
	Pricing  repositories.PricingRepository
	IDs      BookingIDAllocator
	Tickets  TicketRenderer
	Mailer   Mailer
	Location *time.Location
	Now      func() time.Time
	QRCodes  func(bookingID string, passengers int) ([]string, error)
}

type CreateBookingResult struct {
	Booking models.Booking `json:"booking"`
	Email   EmailResult    `json:"email"`
}

type BookingFilter struct {
	Date     string
	Email    string
	Page     int
	PageSize int
}

func (s BookingService) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now().In(s.loc())
	}
	return time.Now().In(s.loc())
}

func (s BookingService) tickets() TicketRenderer {
	if s.Tickets != nil {
		return s.Tickets
	}
	return DocsService{}
}

func (s BookingService) qrCodes(id string, n int) ([]string, error) {
	if s.QRCodes != nil {
		return s.QRCodes(id, n)
	}
	return GenerateQRCodes(id, n)
}

func (s BookingService) ids() BookingIDAllocator {
	a := s.IDs
	if a.Bookings.Store == nil {
		a.Bookings = s.Bookings
	}
	if a.Now == nil {
		a.Now = s.Now
	}
	return a
}

func normalizePassengerType(t string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "adult":
		return models.PassengerAdult, true
	case "child":
		return models.PassengerChild, true
	}
	return "", false
}

func (s BookingService) validate(req models.BookingRequest) ([]models.Passenger, error) {
	if _, err := utils.ParseDate(req.SelectedDate, s.loc()); err != nil {
		return nil, domain.ValidationError{Field: "selectedDate", Msg: "must be a YYYY-MM-DD date", Err: err}
	}
	if len(req.Passengers) == 0 {
		return nil, domain.ValidationError{Field: "passengers", Msg: "at least one passenger is required"}
	}
	if strings.TrimSpace(req.ContactInfo.Email) == "" {
		return nil, domain.ValidationError{Field: "contactInfo.email", Msg: "email is required"}
	}
	if req.TotalPrice < 0 {
		return nil, domain.ValidationError{Field: "totalPrice", Msg: "must not be negative"}
	}
	if !req.TestMode && strings.TrimSpace(req.PaymentIntentID) == "" {
		return nil, domain.ValidationError{Field: "paymentIntentId", Msg: "payment reference is required"}
	}

	out := make([]models.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		name := utils.NormalizeSpace(p.Name)
		if name == "" {
			return nil, domain.ValidationError{Field: fmt.Sprintf("passengers[%d].name", i), Msg: "name is required"}
		}
		kind, ok := normalizePassengerType(p.Type)
		if !ok {
			return nil, domain.ValidationError{Field: fmt.Sprintf("passengers[%d].type", i), Msg: "must be Adult or Child"}
		}
		out[i] = models.Passenger{Name: name, Type: kind}
	}
	return out, nil
}

// Create stores a booking with a fresh id and one QR per passenger, then sends
// the confirmation. The booking is committed before the email is attempted.
func (s BookingService) Create(ctx context.Context, req models.BookingRequest) (CreateBookingResult, error) {
	ctx, span := tracer.Start(ctx, "BookingService.Create")
	defer span.End()

	passengers, err := s.validate(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return CreateBookingResult{}, err
	}

	pricing, err := s.Pricing.Get(ctx)
	if err != nil {
		utils.LogCtx(ctx, "booking", "pricing_unavailable", err.Error())
		pricing = models.DefaultPricing()
	}

	now := s.now()
	b := models.Booking{
		SelectedDate:        strings.TrimSpace(req.SelectedDate),
		Passengers:          passengers,
		TotalPrice:          utils.RoundCents(req.TotalPrice),
		GuidedTour:          req.GuidedTour,
		SelectedAttractions: req.SelectedAttractions,
		PriceBreakdown:      Breakdown(pricing, passengers, req.GuidedTour, req.SelectedAttractions),
		CheckIns:            []models.CheckIn{},
		Status:              models.StatusCreated,
		PaymentIntentID:     strings.TrimSpace(req.PaymentIntentID),
		TestMode:            req.TestMode,
		Language:            utils.Fallback(req.Language, "en"),
		CreatedAt:           now,
		UpdatedAt:           now,
		ContactInfo: models.ContactInfo{
			Name:  utils.NormalizeSpace(req.ContactInfo.Name),
			Email: utils.NormalizeEmail(req.ContactInfo.Email),
			Phone: strings.TrimSpace(req.ContactInfo.Phone),
		},
	}

	stored := false
	for claim := 1; claim <= maxBookingClaims && !stored; claim++ {
		id, err := s.ids().GenerateBookingID(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "allocate id")
			return CreateBookingResult{}, err
		}
		qr, err := s.qrCodes(id, len(passengers))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "qr")
			return CreateBookingResult{}, domain.InternalError{Msg: "generate qr codes", Err: err}
		}
		b.ID = id
		b.QRCodes = qr
		if stored, err = s.Bookings.Insert(ctx, b); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store booking")
			return CreateBookingResult{}, err
		}
		if !stored {
			utils.LogCtx(ctx, "booking", "id_taken", fmt.Sprintf("id=%s claim=%d", id, claim))
		}
	}
	if !stored {
		err := domain.InternalError{Msg: "could not claim a booking id"}
		span.SetStatus(codes.Error, err.Error())
		return CreateBookingResult{}, err
	}

	span.SetAttributes(
		attribute.String("booking.id", b.ID),
		attribute.Int("booking.passengers", len(b.Passengers)),
		attribute.Bool("booking.test_mode", b.TestMode),
	)
	utils.LogCtx(ctx, "booking", "create", fmt.Sprintf("id=%s date=%s passengers=%d total=%.2f", b.ID, b.SelectedDate, len(b.Passengers), b.TotalPrice))

	result := CreateBookingResult{Booking: b}
	switch {
	case req.SkipEmail:
		result.Email = EmailResult{Success: true, Skipped: true}
	case s.Mailer == nil:
		result.Email = EmailResult{Error: "email service not configured"}
	default:
		result.Email = s.Mailer.SendBookingEmail(ctx, b)
	}
	span.SetAttributes(attribute.Bool("email.success", result.Email.Success))
	return result, nil
}

// Get returns the stored booking with its status evaluated for today. The
// record itself is not touched.
func (s BookingService) Get(ctx context.Context, id string) (models.Booking, error) {
	b, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}
	b.Status = b.StatusAt(s.now())
	return b, nil
}

// List returns bookings newest first, optionally filtered by travel date and
// contact email.
func (s BookingService) List(ctx context.Context, f BookingFilter) ([]models.Booking, domain.Pagination, error) {
	all, err := s.Bookings.List(ctx)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	date := strings.TrimSpace(f.Date)
	email := utils.NormalizeEmail(f.Email)
	now := s.now()

	filtered := make([]models.Booking, 0, len(all))
	for _, b := range all {
		if date != "" && b.SelectedDate != date {
			continue
		}
		if email != "" && utils.NormalizeEmail(b.ContactInfo.Email) != email {
			continue
		}
		b.Status = b.StatusAt(now)
		filtered = append(filtered, b)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].ID < filtered[j].ID
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	page := domain.Pagination{Page: f.Page, PageSize: f.PageSize}.Normalize()
	page.Total = len(filtered)
	start := (page.Page - 1) * page.PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + page.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], page, nil
}

// TicketPDF renders the stored booking's tickets from its persisted QR codes.
func (s BookingService) TicketPDF(ctx context.Context, id string) (TicketPDF, error) {
	b, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		return TicketPDF{}, err
	}
	return s.tickets().GenerateBookingPDF(ctx, b, b.QRCodes)
}

func (s BookingService) ResendEmail(ctx context.Context, id string) (EmailResult, error) {
	b, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		return EmailResult{}, err
	}
	if s.Mailer == nil {
		return EmailResult{Error: "email service not configured"}, nil
	}
	res := s.Mailer.SendBookingEmail(ctx, b)
	utils.LogCtx(ctx, "booking", "resend_email", fmt.Sprintf("id=%s success=%t", b.ID, res.Success))
	return res, nil
}

// SamplePDF renders a two passenger ticket that is never stored.
func (s BookingService) SamplePDF(ctx context.Context) (TicketPDF, models.Booking, error) {
	b := models.Booking{
		ID:           "TEST-PDF",
		SelectedDate: utils.FormatDate(s.now(), s.loc()),
		Passengers: []models.Passenger{
			{Name: "Maria Silva", Type: models.PassengerAdult},
			{Name: "Tiago Silva", Type: models.PassengerChild},
		},
		ContactInfo: models.ContactInfo{Name: "Maria Silva", Email: "test@example.com"},
		TotalPrice:  37.5,
		Status:      models.StatusCreated,
		TestMode:    true,
	}
	qr, err := s.qrCodes(b.ID, len(b.Passengers))
	if err != nil {
		return TicketPDF{}, b, domain.InternalError{Msg: "generate qr codes", Err: err}
	}
	b.QRCodes = qr
	pdf, err := s.tickets().GenerateBookingPDF(ctx, b, qr)
	return pdf, b, err
}
