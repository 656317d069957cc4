package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Env struct {
	AppAddr string
	GinMode string

	KVDriver    string
	DatabaseURL string
	KVTable     string

	JWTSecret      string
	AnonKey        string
	ServiceRoleKey string

	EmailAPIKey string
	EmailAPIURL string
	EmailFrom   string
	SiteURL     string

	StripeSecretKey string
	OTelEndpoint    string

	Timezone       string
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// LoadEnv reads process environment once at start. A local .env file is optional.
func LoadEnv() Env {
	_ = godotenv.Load()

	env := Env{
		AppAddr:         getEnv("APP_ADDR", ":8080"),
		GinMode:         strings.TrimSpace(os.Getenv("GIN_MODE")),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		KVTable:         getEnv("KV_TABLE", "kv_store"),
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AnonKey:         strings.TrimSpace(os.Getenv("ANON_KEY")),
		ServiceRoleKey:  strings.TrimSpace(os.Getenv("SERVICE_ROLE_KEY")),
		EmailAPIKey:     strings.TrimSpace(os.Getenv("EMAIL_API_KEY")),
		EmailAPIURL:     getEnv("EMAIL_API_URL", "https://api.resend.com"),
		EmailFrom:       getEnv("EMAIL_FROM", "Hop-On Hop-Off <bookings@example.com>"),
		SiteURL:         strings.TrimRight(getEnv("SITE_URL", "http://localhost:5173"), "/"),
		StripeSecretKey: strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		OTelEndpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Timezone:        getEnv("TIMEZONE", "Europe/Lisbon"),
		RequestTimeout:  parseDuration("REQUEST_TIMEOUT", 25*time.Second),
	}

	env.KVDriver = strings.ToLower(strings.TrimSpace(os.Getenv("KV_DRIVER")))
	if env.KVDriver == "" {
		env.KVDriver = driverFromURL(env.DatabaseURL)
	}

	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				env.CORSOrigins = append(env.CORSOrigins, o)
			}
		}
	}

	if env.JWTSecret == "" && env.AnonKey == "" {
		log.Println("WARNING: neither JWT_SECRET nor ANON_KEY set, bearer auth disabled")
	}
	if env.EmailAPIKey == "" {
		log.Println("WARNING: EMAIL_API_KEY not set, confirmation emails will fail")
	}

	return env
}

// Presence reports which secrets and endpoints are configured, never their values.
func (e Env) Presence() map[string]bool {
	return map[string]bool{
		"DATABASE_URL":                e.DatabaseURL != "",
		"JWT_SECRET":                  e.JWTSecret != "",
		"ANON_KEY":                    e.AnonKey != "",
		"SERVICE_ROLE_KEY":            e.ServiceRoleKey != "",
		"EMAIL_API_KEY":               e.EmailAPIKey != "",
		"STRIPE_SECRET_KEY":           e.StripeSecretKey != "",
		"OTEL_EXPORTER_OTLP_ENDPOINT": e.OTelEndpoint != "",
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (e Env) Location() *time.Location {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		log.Printf("WARNING: unknown TIMEZONE %q, using UTC", e.Timezone)
		return time.UTC
	}
	return loc
}

func driverFromURL(dsn string) string {
	switch {
	case dsn == "":
		return "memory"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	default:
		return "mysql"
	}
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("WARNING: invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}
