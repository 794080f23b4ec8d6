package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Connection string defaults applied by WithDefaults.
const (
	DefaultPort           = 5432
	DefaultSSLMode        = "prefer"
	DefaultConnectTimeout = 10
)

// ErrInvalidDSN is returned by DSNBuilder.Build for incomplete settings.
var ErrInvalidDSN = errors.New("postgres: invalid connection settings")

// DSNBuilder builds postgres:// connection URLs.
type DSNBuilder struct {
	username string
	password string
	host     string
	port     int
	database string
	params   url.Values
}

// NewDSNBuilder creates an empty builder.
func NewDSNBuilder() *DSNBuilder {
	return &DSNBuilder{params: url.Values{}}
}

// Auth sets username and password.
func (b *DSNBuilder) Auth(username, password string) *DSNBuilder {
	b.username = username
	b.password = password
	return b
}

// Host sets the host and port.
func (b *DSNBuilder) Host(host string, port int) *DSNBuilder {
	b.host = host
	b.port = port
	return b
}

// Database sets the database name.
func (b *DSNBuilder) Database(name string) *DSNBuilder {
	b.database = name
	return b
}

// Param sets a query parameter. Empty values are ignored.
func (b *DSNBuilder) Param(key, value string) *DSNBuilder {
	if value != "" {
		b.params.Set(key, value)
	}
	return b
}

// Params sets several query parameters.
func (b *DSNBuilder) Params(params map[string]string) *DSNBuilder {
	for k, v := range params {
		b.Param(k, v)
	}
	return b
}

// WithDefaults fills sslmode and connect_timeout when unset.
func (b *DSNBuilder) WithDefaults() *DSNBuilder {
	if b.params.Get("sslmode") == "" {
		b.params.Set("sslmode", DefaultSSLMode)
	}
	if b.params.Get("connect_timeout") == "" {
		b.params.Set("connect_timeout", strconv.Itoa(DefaultConnectTimeout))
	}
	if b.port == 0 {
		b.port = DefaultPort
	}
	return b
}

// Validate checks the settings Build needs.
func (b *DSNBuilder) Validate() error {
	if b.host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidDSN)
	}
	if b.port <= 0 || b.port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidDSN, b.port)
	}
	if b.password != "" && b.username == "" {
		return fmt.Errorf("%w: password without username", ErrInvalidDSN)
	}
	return nil
}

// Build validates the settings and returns the URL. Parameters are
// encoded in key order.
func (b *DSNBuilder) Build() (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     b.host + ":" + strconv.Itoa(b.port),
		RawQuery: b.params.Encode(),
	}
	switch {
	case b.password != "":
		u.User = url.UserPassword(b.username, b.password)
	case b.username != "":
		u.User = url.User(b.username)
	}
	if b.database != "" {
		u.Path = "/" + b.database
	}
	return u.String(), nil
}

// Redact returns dsn with any password replaced, for logging. Strings that
// do not parse as URLs are hidden entirely.
func Redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "[invalid dsn]"
	}
	return u.Redacted()
}
