package config

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	DB   *sql.DB
	dbMu sync.Mutex
)

// sqlDriverName maps KV_DRIVER onto the registered database/sql driver.
func sqlDriverName(kvDriver string) (string, error) {
	switch kvDriver {
	case "mysql":
		return "mysql", nil
	case "postgres":
		return "pgx", nil
	default:
		return "", fmt.Errorf("driver %q has no sql backend", kvDriver)
	}
}

// ConnectDB initializes the shared DB connection (idempotent).
func ConnectDB(env Env) (*sql.DB, error) {
	dbMu.Lock()
	defer dbMu.Unlock()

	if DB != nil {
		return DB, nil
	}

	name, err := sqlDriverName(env.KVDriver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, env.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	DB = db
	log.Printf("Connected to %s key-value backend", env.KVDriver)
	return DB, nil
}

func CloseDB() {
	dbMu.Lock()
	defer dbMu.Unlock()

	if DB != nil {
		_ = DB.Close()
		DB = nil
	}
}
