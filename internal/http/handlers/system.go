package handlers

import (
	"fmt"
	"net/http"
	"sync"

	"tourbackend/internal/domain/models"

	"github.com/gin-gonic/gin"
)

var (
	routerMu sync.RWMutex
	router   *gin.Engine
)

// SetRouter stores the active gin engine for later inspection (e.g., /routes).
func SetRouter(r *gin.Engine) {
	routerMu.Lock()
	defer routerMu.Unlock()
	router = r
}

func Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok", "message": "booking backend running"})
}

// GET /db-check
func (h Handlers) DBCheck(c *gin.Context) {
	res, err := h.Diagnostics.DBCheck(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "store connection OK", "result": res})
}

// GET /db-diagnostics
func (h Handlers) DBDiagnostics(c *gin.Context) {
	report := h.Diagnostics.Diagnostics(c.Request.Context())
	status := http.StatusOK
	if !report.Connected {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"success": report.Healthy, "diagnostics": report})
}

// POST /db-cleanup
func (h Handlers) DBCleanup(c *gin.Context) {
	var req models.CleanupRequest
	if c.Request.ContentLength > 0 {
		if !BindJSONOrError(c, &req) {
			return
		}
	}
	res, err := h.Diagnostics.Cleanup(c.Request.Context(), req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"result": res})
}

// GET /test-pdf renders a sample ticket; ?format=json returns it base64 encoded.
func (h Handlers) TestPDF(c *gin.Context) {
	pdf, sample, err := h.Bookings.SamplePDF(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if c.Query("format") == "json" {
		ok(c, http.StatusOK, gin.H{
			"pages":     pdf.Pages,
			"size":      len(pdf.Bytes),
			"filename":  pdf.Filename,
			"pdfBase64": pdf.Base64(),
			"booking":   sample,
		})
		return
	}
	writePDF(c, pdf.Filename, pdf.Bytes, false)
}

func writePDF(c *gin.Context, filename string, body []byte, attachment bool) {
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, filename))
	c.Data(http.StatusOK, "application/pdf", body)
}

func Routes(c *gin.Context) {
	routerMu.RLock()
	r := router
	routerMu.RUnlock()
	if r == nil {
		respondError(c, http.StatusServiceUnavailable, "not_ready", "router not ready", "")
		return
	}

	routes := r.Routes()
	out := make([]gin.H, 0, len(routes))
	for _, rt := range routes {
		out = append(out, gin.H{
			"method": rt.Method,
			"path":   rt.Path,
		})
	}
	ok(c, http.StatusOK, gin.H{"routes": out})
}
