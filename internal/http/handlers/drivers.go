package handlers

import (
	"net/http"

	"tourbackend/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// POST /drivers/register
func (h Handlers) RegisterDriver(c *gin.Context) {
	var in models.DriverRegisterInput
	if !BindJSONOrError(c, &in) {
		return
	}
	d, err := h.Drivers.Register(c.Request.Context(), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"driver": d})
}

// POST /drivers/login
func (h Handlers) LoginDriver(c *gin.Context) {
	var in models.DriverLoginInput
	if !BindJSONOrError(c, &in) {
		return
	}
	res, err := h.Drivers.Login(c.Request.Context(), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"token": res.Token, "expiresAt": res.ExpiresAt, "driver": res.Driver})
}

// GET /drivers
func (h Handlers) ListDrivers(c *gin.Context) {
	list, err := h.Drivers.List(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"drivers": list})
}

// POST /drivers/:id/deactivate
func (h Handlers) DeactivateDriver(c *gin.Context) {
	d, err := h.Drivers.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"driver": d})
}
