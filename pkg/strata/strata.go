// Package strata is the embeddable API of the strata migration engine:
// apply and revert the rental platform's schema history, audit the
// per-role profile invariants and repair drifted data.
package strata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/engine"
	"github.com/hlop3z/strata/internal/engine/runner"
	"github.com/hlop3z/strata/internal/migrations"
	"github.com/hlop3z/strata/internal/roles"
)

// Client is the main entry point for strata.
//
// Example:
//
//	client, err := strata.Open(strata.WithDatabaseURL("postgres://localhost/rentals"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if _, err := client.Migrate(ctx, 0); err != nil {
//	    log.Fatal(err)
//	}
type Client struct {
	db       *sql.DB
	ownsDB   bool
	dialect  dialect.Dialect
	config   *Config
	registry *engine.Registry
	runner   *runner.Runner
}

// Open connects to the database and prepares the migration runner.
// At minimum WithDatabaseURL or WithDB must be provided.
func Open(opts ...Option) (*Client, error) {
	cfg := &Config{
		Timeout:     30 * time.Second,
		LockTimeout: runner.DefaultLockTimeout,
		Policy:      roles.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.db == nil && cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}

	var d dialect.Dialect
	if cfg.Dialect == "" {
		d = dialect.FromURL(cfg.DatabaseURL)
		cfg.Dialect = d.Name()
	} else {
		var err error
		if d, err = dialect.Get(cfg.Dialect); err != nil {
			return nil, err
		}
	}

	db, owns := cfg.db, false
	if db == nil {
		var err error
		if db, err = openDatabase(cfg.DatabaseURL, d); err != nil {
			return nil, &ConnectionError{URL: redactURL(cfg.DatabaseURL), Dialect: d.Name(), Cause: err}
		}
		owns = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		if owns {
			db.Close()
		}
		return nil, &ConnectionError{URL: redactURL(cfg.DatabaseURL), Dialect: d.Name(), Cause: err}
	}

	reg, err := migrations.Registry(cfg.Policy)
	if err != nil {
		if owns {
			db.Close()
		}
		return nil, err
	}

	ropts := []runner.Option{runner.WithLockTimeout(cfg.LockTimeout)}
	if cfg.TransactionalDDL != nil {
		ropts = append(ropts, runner.WithTransactionalDDL(*cfg.TransactionalDDL))
	}

	return &Client{
		db:       db,
		ownsDB:   owns,
		dialect:  d,
		config:   cfg,
		registry: reg,
		runner:   runner.New(db, d, reg, ropts...),
	}, nil
}

// Close closes the database connection if the Client opened it.
func (c *Client) Close() error {
	if c.db != nil && c.ownsDB {
		return c.db.Close()
	}
	return nil
}

// DB returns the underlying database connection.
// Use with caution - prefer the high-level methods when possible.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Dialect returns the database dialect name.
func (c *Client) Dialect() string {
	return c.dialect.Name()
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return *c.config
}

// Units returns the registered migration units in version order.
func (c *Client) Units() []engine.Unit {
	return c.registry.Units()
}

// openDatabase opens a database connection for the dialect.
func openDatabase(url string, d dialect.Dialect) (*sql.DB, error) {
	switch d.Name() {
	case "postgres":
		db, err := sql.Open(dialect.DriverName(d), url)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		return db, nil

	case "sqlite":
		db, err := sql.Open(dialect.DriverName(d), sqliteDSN(url))
		if err != nil {
			return nil, err
		}
		// One connection: the lock, the ledger and each unit's transaction
		// must see the same database, including ":memory:".
		db.SetMaxOpenConns(1)
		return db, nil
	}
	return nil, fmt.Errorf("unsupported dialect: %s", d.Name())
}

// sqliteDSN converts a sqlite:// URL into a modernc DSN with foreign keys enforced.
func sqliteDSN(url string) string {
	url = strings.TrimPrefix(url, "sqlite://")
	url = strings.TrimPrefix(url, "sqlite3://")
	url = strings.TrimPrefix(url, "file:")

	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_pragma=foreign_keys(1)"
}
