package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "tourbackend/internal/config"
	router "tourbackend/internal/http"
	"tourbackend/internal/http/handlers"
	"tourbackend/internal/kv"
	"tourbackend/internal/repositories"
	"tourbackend/internal/services"
	"tourbackend/internal/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "tour-booking-backend"

func main() {
	env := intconfig.LoadEnv()
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	shutdownTracing := telemetry.Setup(serviceName, env.OTelEndpoint)

	store, tables, err := openStore(env)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", env.KVDriver, err)
	}
	defer intconfig.CloseDB()

	loc := env.Location()
	bookings := repositories.BookingRepository{Store: store}
	drivers := repositories.DriverRepository{Store: store}
	pricing := repositories.PricingRepository{Store: store}
	docs := services.DocsService{}

	hs := handlers.Handlers{
		Bookings: services.BookingService{
			Bookings: bookings,
			Pricing:  pricing,
			IDs:      services.BookingIDAllocator{Bookings: bookings},
			Tickets:  docs,
			Mailer: services.EmailService{
				APIKey:  env.EmailAPIKey,
				APIURL:  env.EmailAPIURL,
				From:    env.EmailFrom,
				SiteURL: env.SiteURL,
				Tickets: docs,
			},
			Location: loc,
		},
		Checkins: services.CheckinService{Bookings: bookings, Location: loc},
		Drivers:  services.DriverService{Drivers: drivers, JWTSecret: env.JWTSecret},
		Pricing:  services.PricingService{Pricing: pricing},
		Diagnostics: services.DiagnosticsService{
			Store:    store,
			Bookings: bookings,
			Drivers:  drivers,
			Tables:   tables,
			Backend:  env.KVDriver,
			Table:    env.KVTable,
			Config:   env.Presence(),
			Location: loc,
		},
	}

	r := router.NewRouter(env, hs)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           otelhttp.NewHandler(r, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      env.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://localhost%s (store=%s tz=%s)", env.AppAddr, env.KVDriver, loc)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Printf("Tracer shutdown failed: %v", err)
	}

	log.Println("Server stopped cleanly.")
}

// openStore builds the retrying key-value store for KV_DRIVER. SQL backends
// also return a table checker for diagnostics.
func openStore(env intconfig.Env) (kv.Store, services.TableChecker, error) {
	if env.KVDriver == "memory" {
		log.Println("WARNING: using in-memory store, bookings are lost on restart")
		return kv.NewRetryStore(kv.NewMemoryStore(), kv.RetryOptions{}), nil, nil
	}

	dialect, err := kv.ParseDialect(env.KVDriver)
	if err != nil {
		return nil, nil, err
	}
	db, err := intconfig.ConnectDB(env)
	if err != nil {
		return nil, nil, err
	}
	sqlStore, err := kv.NewSQLStore(db, dialect, env.KVTable)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlStore.Migrate(ctx); err != nil {
		return nil, nil, fmt.Errorf("migrate %s: %w", env.KVTable, err)
	}
	return kv.NewRetryStore(sqlStore, kv.RetryOptions{}), sqlStore, nil
}
