package handlers

import (
	"net/http"

	"tourbackend/internal/domain/models"

	"github.com/gin-gonic/gin"
)

func (h Handlers) GetPricing(c *gin.Context) {
	p, err := h.Pricing.Get(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"pricing": p})
}

func (h Handlers) UpdatePricing(c *gin.Context) {
	var in models.PricingConfig
	if !BindJSONOrError(c, &in) {
		return
	}
	p, err := h.Pricing.Update(c.Request.Context(), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"pricing": p})
}
