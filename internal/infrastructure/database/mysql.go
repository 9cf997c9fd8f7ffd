package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Connection wraps the MySQL pool.
// sql.DB is already safe for concurrent use; it is not wrapped with extra locks.
type Connection struct {
	db *sql.DB
}

// Options locate the database server
type Options struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

var tlsOnce sync.Once

// Connect opens the pool and verifies it with a ping
func Connect(opts Options) (*Connection, error) {
	db, err := sql.Open("mysql", DSN(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// MaxIdleConns equals MaxOpenConns to avoid churning connections under load
	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(100)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{db: db}, nil
}

// DSN builds the driver data source name. Remote hosts get TLS.
func DSN(opts Options) string {
	port := opts.Port
	if port == "" {
		port = "3306"
	}
	name := opts.Name
	if name == "" {
		name = "gpus"
	}

	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", opts.Host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	if opts.Host != "" && opts.Host != "127.0.0.1" && opts.Host != "localhost" {
		tlsOnce.Do(func() {
			if err := mysql.RegisterTLSConfig("remote", &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: opts.Host,
			}); err != nil {
				log.Printf("⚠️ Failed to register TLS config: %v", err)
			}
		})
		cfg.TLSConfig = "remote"
	}

	return cfg.FormatDSN()
}

// NewFromDB wraps an existing pool (tests, tools)
func NewFromDB(db *sql.DB) *Connection {
	return &Connection{db: db}
}

// DB returns the underlying *sql.DB
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Ping checks the pool
func (c *Connection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.db.Close()
}

// IsDuplicateEntry reports a unique key violation (MySQL error 1062)
func IsDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
