package handlers

import "tourbackend/internal/services"

// Handlers binds the HTTP endpoints to the services they call.
type Handlers struct {
	Bookings    services.BookingService
	Checkins    services.CheckinService
	Drivers     services.DriverService
	Pricing     services.PricingService
	Diagnostics services.DiagnosticsService
}
