package handlers

import (
	"net/http"
	"strconv"

	"tourbackend/internal/domain/models"
	"tourbackend/internal/services"

	"github.com/gin-gonic/gin"
)

// POST /bookings
func (h Handlers) CreateBooking(c *gin.Context) {
	var req models.BookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	res, err := h.Bookings.Create(c.Request.Context(), req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"booking": res.Booking, "email": res.Email})
}

// GET /bookings?date=YYYY-MM-DD&email=...&page=&pageSize=
func (h Handlers) ListBookings(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("pageSize"))
	list, pagination, err := h.Bookings.List(c.Request.Context(), services.BookingFilter{
		Date:     c.Query("date"),
		Email:    c.Query("email"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"bookings": list, "pagination": pagination})
}

// GET /bookings/:id
func (h Handlers) GetBooking(c *gin.Context) {
	b, err := h.Bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"booking": b})
}

// GET /bookings/:id/pdf
func (h Handlers) GetBookingPDF(c *gin.Context) {
	pdf, err := h.Bookings.TicketPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	writePDF(c, pdf.Filename, pdf.Bytes, c.Query("download") == "1")
}

// POST /bookings/:id/resend-email
func (h Handlers) ResendBookingEmail(c *gin.Context) {
	res, err := h.Bookings.ResendEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"success": res.Success, "email": res})
}
