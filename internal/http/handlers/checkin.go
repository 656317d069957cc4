package handlers

import (
	"net/http"

	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// POST /verify-qr
func (h Handlers) VerifyQR(c *gin.Context) {
	var req models.VerifyQRRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	res, err := h.Checkins.Verify(c.Request.Context(), req.QRData)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"verification": res})
}

// POST /checkin. Driver tokens stamp the check-in with the driver id; a
// disabled driver is refused.
func (h Handlers) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if rc, found := middleware.Caller(c); found && rc.Role == domain.RoleDriver {
		d, err := h.Drivers.ActiveDriver(c.Request.Context(), rc.DriverID)
		if err != nil {
			RespondDomainError(c, err)
			return
		}
		req.DriverID = d.ID
	}

	res, err := h.Checkins.CheckIn(c.Request.Context(), req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	msg := "check-in recorded"
	if res.AlreadyCheckedIn {
		msg = "passenger already checked in today"
	}
	ok(c, http.StatusOK, gin.H{
		"message":          msg,
		"alreadyCheckedIn": res.AlreadyCheckedIn,
		"checkIn":          res.CheckIn,
		"passenger":        res.Passenger,
		"booking":          res.Booking,
	})
}
