package models

// VerifyQRRequest is the scanner payload for the read-only verification.
type VerifyQRRequest struct {
	QRData string `json:"qrData" binding:"required"`
}

type CheckInRequest struct {
	QRData      string `json:"qrData" binding:"required"`
	Location    string `json:"location"`
	Destination string `json:"destination"`
	// DriverID is taken from the bearer token, never from the body.
	DriverID string `json:"-"`
}

type CleanupRequest struct {
	DryRun        bool `json:"dryRun"`
	OlderThanDays int  `json:"olderThanDays"`
	TestOnly      bool `json:"testOnly"`
}
