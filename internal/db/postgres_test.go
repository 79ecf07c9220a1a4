package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsConflict(t *testing.T) {
	exclusion := &pgconn.PgError{Code: "23P01", ConstraintName: "provider_bookings_no_overlap"}
	assert.True(t, IsConflict(exclusion))
	assert.True(t, IsConflict(fmt.Errorf("insert booking: %w", exclusion)))
	assert.True(t, IsConflict(&pgconn.PgError{Code: "23505"}))

	assert.False(t, IsConflict(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsConflict(errors.New("connection reset")))
	assert.False(t, IsConflict(nil))
}
