package pg

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	driverName             = "pgx"
	instrumentedDriverName = "nrpgx"
)

type Config struct {
	User               string
	Host               string
	Password           string
	Port               int
	DbName             string
	MaxOpenConnections int
	MaxIdleConnections int

	// Instrumented routes queries through the New Relic driver so they show up
	// as datastore segments of the transaction in the query context.
	Instrumented bool
}

func (c *Config) dsn() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.DbName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) driver() string {
	if c.Instrumented {
		return instrumentedDriverName
	}
	return driverName
}

// NewFromConfig opens and pings a connection pool described by config.
func NewFromConfig(config *Config) (*sql.DB, error) {
	db, err := sql.Open(config.driver(), config.dsn())
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}
	return db, nil
}
