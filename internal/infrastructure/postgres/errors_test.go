package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"syntax error", &pgconn.PgError{Code: "42601", Message: "syntax error"}, conn.ErrQueryFailed},
		{"unique violation", &pgconn.PgError{Code: "23505"}, conn.ErrQueryFailed},
		{"connection failure", &pgconn.PgError{Code: "08006"}, conn.ErrConnectionLost},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, conn.ErrConnectionLost},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, conn.ErrConnectionLost},
		{"tx closed", pgx.ErrTxClosed, conn.ErrQueryFailed},
		{"eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), conn.ErrConnectionLost},
		{"deadline", context.DeadlineExceeded, conn.ErrTimeout},
		{"cancelled", context.Canceled, conn.ErrCancelled},
		{"other", errors.New("boom"), conn.ErrQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("query", tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, classify("query", nil))
}

func TestConnect_InvalidDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz")
	assert.ErrorIs(t, err, ErrInvalidDSN)
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Port 1 on loopback refuses connections.
	f := NewFactory("postgres://app@127.0.0.1:1/db?connect_timeout=1&sslmode=disable")
	_, err := f.Create(ctx)
	assert.True(t, conn.IsConnectionLoss(err), "Create() error = %v, want connection loss", err)
}
