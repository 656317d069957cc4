package models

import (
	"strings"
	"time"
)

const (
	StatusCreated   = "created"
	StatusCheckedIn = "checked-in"
	StatusExpired   = "expired"
)

const (
	PassengerAdult = "Adult"
	PassengerChild = "Child"
)

// DateLayout is the calendar format of Booking.SelectedDate.
const DateLayout = "2006-01-02"

// Booking is the persisted booking record. QRCodes holds one PNG data URL per
// passenger, in passenger order.
type Booking struct {
	ID                  string      `json:"id"`
	SelectedDate        string      `json:"selectedDate"`
	Passengers          []Passenger `json:"passengers"`
	ContactInfo         ContactInfo `json:"contactInfo"`
	TotalPrice          float64     `json:"totalPrice"`
	GuidedTour          bool        `json:"guidedTour"`
	SelectedAttractions []string    `json:"selectedAttractions,omitempty"`
	PriceBreakdown      []PriceLine `json:"priceBreakdown,omitempty"`
	QRCodes             []string    `json:"qrCodes"`
	CheckIns            []CheckIn   `json:"checkIns"`
	Status              string      `json:"status"`
	PaymentIntentID     string      `json:"paymentIntentId,omitempty"`
	TestMode            bool        `json:"testMode,omitempty"`
	Language            string      `json:"language,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

type Passenger struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CheckIn struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Location       string    `json:"location"`
	Destination    string    `json:"destination"`
	PassengerIndex int       `json:"passengerIndex"`
	DriverID       string    `json:"driverId,omitempty"`
}

type PriceLine struct {
	Label     string  `json:"label"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Amount    float64 `json:"amount"`
}

// Date parses SelectedDate in loc.
func (b Booking) Date(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(b.SelectedDate), loc)
}

// StatusAt reports the lifecycle state as seen at now without mutating b.
func (b Booking) StatusAt(now time.Time) string {
	day, err := b.Date(now.Location())
	if err == nil && day.Before(truncateDay(now)) {
		return StatusExpired
	}
	if b.Status == "" {
		return StatusCreated
	}
	return b.Status
}

// CheckedInOn reports whether passenger idx already has a check-in on the
// calendar day of now.
func (b Booking) CheckedInOn(idx int, now time.Time) bool {
	y, m, d := now.Date()
	for _, ci := range b.CheckIns {
		if ci.PassengerIndex != idx {
			continue
		}
		cy, cm, cd := ci.Timestamp.In(now.Location()).Date()
		if cy == y && cm == m && cd == d {
			return true
		}
	}
	return false
}

func (b Booking) CountByType(kind string) int {
	n := 0
	for _, p := range b.Passengers {
		if strings.EqualFold(p.Type, kind) {
			n++
		}
	}
	return n
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// BookingRequest is the create-booking payload accepted at the HTTP boundary.
type BookingRequest struct {
	SelectedDate        string           `json:"selectedDate" binding:"required"`
	Passengers          []PassengerInput `json:"passengers" binding:"required,min=1,dive"`
	ContactInfo         ContactInfoInput `json:"contactInfo" binding:"required"`
	TotalPrice          float64          `json:"totalPrice" binding:"gte=0"`
	GuidedTour          bool             `json:"guidedTour"`
	SelectedAttractions []string         `json:"selectedAttractions"`
	PaymentIntentID     string           `json:"paymentIntentId"`
	TestMode            bool             `json:"testMode"`
	SkipEmail           bool             `json:"skipEmail"`
	Language            string           `json:"language"`
}

type PassengerInput struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
}

type ContactInfoInput struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
}
