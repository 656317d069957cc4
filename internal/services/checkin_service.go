package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/repositories"
	"tourbackend/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxCheckInWrites = 3

	ReasonNotYetValid = "not_yet_valid"
	ReasonExpired     = "expired"
)

type CheckinService struct {
	Bookings repositories.BookingRepository
	Location *time.Location
	Now      func() time.Time
}

type VerifyResult struct {
	Valid            bool             `json:"valid"`
	Reason           string           `json:"reason,omitempty"`
	BookingID        string           `json:"bookingId"`
	PassengerIndex   int              `json:"passengerIndex"`
	Passenger        models.Passenger `json:"passenger"`
	SelectedDate     string           `json:"selectedDate"`
	Status           string           `json:"status"`
	AlreadyCheckedIn bool             `json:"alreadyCheckedIn"`
	CheckIns         []models.CheckIn `json:"checkIns"`
}

type CheckInResult struct {
	Booking          models.Booking   `json:"booking"`
	Passenger        models.Passenger `json:"passenger"`
	CheckIn          *models.CheckIn  `json:"checkIn,omitempty"`
	AlreadyCheckedIn bool             `json:"alreadyCheckedIn"`
}

func (s CheckinService) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s CheckinService) now() time.Time {
	if s.Now != nil {
		return s.Now().In(s.loc())
	}
	return time.Now().In(s.loc())
}

// dateState compares the pass date with today: "" when it is valid today.
func (s CheckinService) dateState(b models.Booking, now time.Time) (string, error) {
	day, err := b.Date(s.loc())
	if err != nil {
		return "", domain.InternalError{Msg: fmt.Sprintf("booking %s has an invalid date", b.ID), Err: err}
	}
	today := utils.StartOfDay(now)
	switch {
	case day.Before(today):
		return ReasonExpired, nil
	case day.After(today):
		return ReasonNotYetValid, nil
	}
	return "", nil
}

func passengerAt(b models.Booking, idx int) (models.Passenger, error) {
	if idx < 0 || idx >= len(b.Passengers) {
		return models.Passenger{}, domain.ValidationError{
			Field: "passengerIndex",
			Msg:   fmt.Sprintf("passenger %d not on booking %s", idx, b.ID),
		}
	}
	return b.Passengers[idx], nil
}

// Verify reports what a scan would do without recording anything.
func (s CheckinService) Verify(ctx context.Context, qrData string) (VerifyResult, error) {
	payload, err := ParseQRPayload(qrData)
	if err != nil {
		return VerifyResult{}, err
	}
	b, err := s.Bookings.GetByID(ctx, payload.BookingID)
	if err != nil {
		return VerifyResult{}, err
	}
	p, err := passengerAt(b, payload.PassengerIndex)
	if err != nil {
		return VerifyResult{}, err
	}
	now := s.now()
	reason, err := s.dateState(b, now)
	if err != nil {
		return VerifyResult{}, err
	}

	checkIns := b.CheckIns
	if checkIns == nil {
		checkIns = []models.CheckIn{}
	}
	return VerifyResult{
		Valid:            reason == "",
		Reason:           reason,
		BookingID:        b.ID,
		PassengerIndex:   payload.PassengerIndex,
		Passenger:        p,
		SelectedDate:     b.SelectedDate,
		Status:           b.StatusAt(now),
		AlreadyCheckedIn: b.CheckedInOn(payload.PassengerIndex, now),
		CheckIns:         checkIns,
	}, nil
}

// CheckIn records one boarding scan. A passenger is recorded at most once per
// day; repeated scans report AlreadyCheckedIn and write nothing. Concurrent
// scans are serialised by compare-and-swap on the stored record.
func (s CheckinService) CheckIn(ctx context.Context, req models.CheckInRequest) (CheckInResult, error) {
	ctx, span := tracer.Start(ctx, "CheckinService.CheckIn")
	defer span.End()

	payload, err := ParseQRPayload(req.QRData)
	if err != nil {
		return CheckInResult{}, err
	}
	span.SetAttributes(attribute.String("booking.id", payload.BookingID), attribute.Int("passenger.index", payload.PassengerIndex))

	for attempt := 1; attempt <= maxCheckInWrites; attempt++ {
		b, version, err := s.Bookings.GetWithVersion(ctx, payload.BookingID)
		if err != nil {
			return CheckInResult{}, err
		}
		p, err := passengerAt(b, payload.PassengerIndex)
		if err != nil {
			return CheckInResult{}, err
		}

		now := s.now()
		reason, err := s.dateState(b, now)
		if err != nil {
			return CheckInResult{}, err
		}
		switch reason {
		case ReasonNotYetValid:
			return CheckInResult{}, domain.ConflictError{Resource: "booking", Code: reason, Msg: fmt.Sprintf("pass is valid on %s, not today", b.SelectedDate)}
		case ReasonExpired:
			return CheckInResult{}, domain.ConflictError{Resource: "booking", Code: reason, Msg: fmt.Sprintf("pass expired on %s", b.SelectedDate)}
		}

		if b.CheckedInOn(payload.PassengerIndex, now) {
			utils.LogCtx(ctx, "checkin", "duplicate", fmt.Sprintf("booking_id=%s passenger=%d", b.ID, payload.PassengerIndex))
			return CheckInResult{Booking: b, Passenger: p, AlreadyCheckedIn: true}, nil
		}

		ci := models.CheckIn{
			ID:             uuid.NewString(),
			Timestamp:      now,
			Location:       strings.TrimSpace(req.Location),
			Destination:    strings.TrimSpace(req.Destination),
			PassengerIndex: payload.PassengerIndex,
			DriverID:       req.DriverID,
		}
		b.CheckIns = append(b.CheckIns, ci)
		b.Status = models.StatusCheckedIn
		b.UpdatedAt = now

		ok, err := s.Bookings.ReplaceIfUnchanged(ctx, b, version)
		if err != nil {
			return CheckInResult{}, err
		}
		if ok {
			utils.LogCtx(ctx, "checkin", "recorded", fmt.Sprintf("booking_id=%s passenger=%d driver=%s", b.ID, ci.PassengerIndex, ci.DriverID))
			return CheckInResult{Booking: b, Passenger: p, CheckIn: &ci}, nil
		}
		utils.LogCtx(ctx, "checkin", "write_conflict", fmt.Sprintf("booking_id=%s attempt=%d", b.ID, attempt))
	}
	return CheckInResult{}, domain.ConflictError{Resource: "booking", Code: "concurrent_update", Msg: "booking changed during check-in, scan again"}
}
