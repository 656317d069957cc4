package services

import (
	"context"
	"fmt"
	"time"

	"tourbackend/internal/domain"
	"tourbackend/internal/domain/models"
	"tourbackend/internal/kv"
	"tourbackend/internal/repositories"
	"tourbackend/internal/utils"
)

const defaultRetentionDays = 30

// TableChecker is implemented by SQL-backed stores.
type TableChecker interface {
	HasTable(ctx context.Context) (bool, error)
}

type DiagnosticsService struct {
	Store    kv.Store
	Bookings repositories.BookingRepository
	Drivers  repositories.DriverRepository
	Tables   TableChecker
	Backend  string
	Table    string
	// Config maps setting names to whether they are present.
	Config   map[string]bool
	Location *time.Location
	Now      func() time.Time
}

type DBCheckResult struct {
	Connected    bool   `json:"connected"`
	Backend      string `json:"backend"`
	LatencyMs    int64  `json:"latencyMs"`
	BookingCount int    `json:"bookingCount"`
}

type DiagnosticsReport struct {
	Healthy         bool            `json:"healthy"`
	Backend         string          `json:"backend"`
	Table           string          `json:"table,omitempty"`
	Config          map[string]bool `json:"config"`
	Connected       bool            `json:"connected"`
	TableExists     *bool           `json:"tableExists,omitempty"`
	LatencyMs       int64           `json:"latencyMs"`
	BookingCount    int             `json:"bookingCount"`
	DriverCount     int             `json:"driverCount"`
	CurrentPrefix   string          `json:"currentPrefix,omitempty"`
	Errors          []string        `json:"errors,omitempty"`
	Troubleshooting []string        `json:"troubleshooting,omitempty"`
	CheckedAt       time.Time       `json:"checkedAt"`
}

type CleanupResult struct {
	DryRun        bool     `json:"dryRun"`
	OlderThanDays int      `json:"olderThanDays"`
	TestOnly      bool     `json:"testOnly"`
	Cutoff        string   `json:"cutoff"`
	Matched       int      `json:"matched"`
	Deleted       int      `json:"deleted"`
	IDs           []string `json:"ids"`
}

func (s DiagnosticsService) now() time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	if s.Now != nil {
		return s.Now().In(loc)
	}
	return time.Now().In(loc)
}

func (s DiagnosticsService) ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := s.Store.Ping(ctx)
	return time.Since(start), err
}

// DBCheck pings the store and counts bookings.
func (s DiagnosticsService) DBCheck(ctx context.Context) (DBCheckResult, error) {
	latency, err := s.ping(ctx)
	if err != nil {
		return DBCheckResult{Backend: s.Backend}, domain.UnavailableError{Dependency: "store", Err: err}
	}
	count, err := s.Bookings.Count(ctx)
	if err != nil {
		return DBCheckResult{Backend: s.Backend}, err
	}
	return DBCheckResult{
		Connected:    true,
		Backend:      s.Backend,
		LatencyMs:    latency.Milliseconds(),
		BookingCount: count,
	}, nil
}

// Diagnostics gathers everything an operator needs to debug the store. It
// never fails; problems are listed in the report.
func (s DiagnosticsService) Diagnostics(ctx context.Context) DiagnosticsReport {
	r := DiagnosticsReport{
		Backend:   s.Backend,
		Table:     s.Table,
		Config:    s.Config,
		CheckedAt: s.now(),
	}
	if r.Config == nil {
		r.Config = map[string]bool{}
	}

	latency, err := s.ping(ctx)
	r.LatencyMs = latency.Milliseconds()
	if err != nil {
		r.Errors = append(r.Errors, "ping: "+err.Error())
	} else {
		r.Connected = true
	}

	if r.Connected && s.Tables != nil {
		exists, err := s.Tables.HasTable(ctx)
		if err != nil {
			r.Errors = append(r.Errors, "table check: "+err.Error())
		} else {
			r.TableExists = &exists
		}
	}

	if r.Connected && (r.TableExists == nil || *r.TableExists) {
		if n, err := s.Bookings.Count(ctx); err != nil {
			r.Errors = append(r.Errors, "count bookings: "+err.Error())
		} else {
			r.BookingCount = n
		}
		if drivers, err := s.Drivers.List(ctx); err != nil {
			r.Errors = append(r.Errors, "count drivers: "+err.Error())
		} else {
			r.DriverCount = len(drivers)
		}
		if p, err := s.Bookings.PeekPrefix(ctx); err != nil {
			r.Errors = append(r.Errors, "read prefix: "+err.Error())
		} else {
			r.CurrentPrefix = p
		}
	}

	r.Troubleshooting = troubleshooting(r)
	r.Healthy = len(r.Errors) == 0 && r.Connected && (r.TableExists == nil || *r.TableExists)
	utils.LogCtx(ctx, "diagnostics", "report", fmt.Sprintf("healthy=%t connected=%t errors=%d", r.Healthy, r.Connected, len(r.Errors)))
	return r
}

func troubleshooting(r DiagnosticsReport) []string {
	var steps []string
	if !r.Connected {
		steps = append(steps,
			"Check DATABASE_URL points at a reachable database and the credentials are valid.",
			"Confirm the database accepts connections from this host (firewall, SSL mode, connection limits).",
		)
	}
	if r.TableExists != nil && !*r.TableExists {
		steps = append(steps, fmt.Sprintf("Create the %q table or restart the service so it runs its migration.", r.Table))
	}
	if !r.Config["EMAIL_API_KEY"] {
		steps = append(steps, "Set EMAIL_API_KEY so confirmation emails can be sent.")
	}
	if !r.Config["JWT_SECRET"] && !r.Config["ANON_KEY"] {
		steps = append(steps, "Set JWT_SECRET or ANON_KEY to protect the API.")
	}
	if r.LatencyMs > 1000 {
		steps = append(steps, "Store latency is above one second; check database load and region.")
	}
	return steps
}

// Cleanup deletes bookings whose pass date is older than the retention window.
// With DryRun it only reports what would be deleted.
func (s DiagnosticsService) Cleanup(ctx context.Context, req models.CleanupRequest) (CleanupResult, error) {
	if req.OlderThanDays < 0 {
		return CleanupResult{}, domain.ValidationError{Field: "olderThanDays", Msg: "must not be negative"}
	}
	days := req.OlderThanDays
	if days == 0 {
		days = defaultRetentionDays
	}
	cutoff := utils.StartOfDay(s.now()).AddDate(0, 0, -days)

	all, err := s.Bookings.List(ctx)
	if err != nil {
		return CleanupResult{}, err
	}
	res := CleanupResult{
		DryRun:        req.DryRun,
		OlderThanDays: days,
		TestOnly:      req.TestOnly,
		Cutoff:        utils.FormatDate(cutoff, cutoff.Location()),
		IDs:           []string{},
	}
	for _, b := range all {
		if req.TestOnly && !b.TestMode {
			continue
		}
		day, err := b.Date(cutoff.Location())
		if err != nil || !day.Before(cutoff) {
			continue
		}
		res.IDs = append(res.IDs, b.ID)
	}
	res.Matched = len(res.IDs)

	if !req.DryRun && res.Matched > 0 {
		if err := s.Bookings.DeleteMany(ctx, res.IDs); err != nil {
			return CleanupResult{}, err
		}
		res.Deleted = res.Matched
	}
	utils.LogCtx(ctx, "diagnostics", "cleanup", fmt.Sprintf("dry_run=%t matched=%d deleted=%d cutoff=%s", res.DryRun, res.Matched, res.Deleted, res.Cutoff))
	return res, nil
}
