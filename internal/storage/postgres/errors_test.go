package postgres

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/storefront/internal/domain/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, apperr.KindConflict},
		{"serialization", &pgconn.PgError{Code: codeSerializationFailure}, apperr.KindConflict},
		{"lock not available", &pgconn.PgError{Code: codeLockNotAvailable}, apperr.KindConflict},
		{"unique", errors.Wrap(&pgconn.PgError{Code: codeUniqueViolation}, "insert"), apperr.KindConflict},
		{"connection failure", &pgconn.PgError{Code: "08006"}, apperr.KindUnavailable},
		{"cannot connect now", &pgconn.PgError{Code: codeCannotConnectNow}, apperr.KindUnavailable},
		{"deadline", context.DeadlineExceeded, apperr.KindUnavailable},
		{"numeric out of range", errors.Wrap(&pgconn.PgError{Code: codeNumericOutOfRange, Message: "integer out of range"}, "add cart item"), apperr.KindValidation},
		{"invalid text representation", &pgconn.PgError{Code: "22P02"}, apperr.KindValidation},
		{"check violation", &pgconn.PgError{Code: codeCheckViolation}, apperr.KindInternal},
		{"other", errors.New("boom"), apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.Kind(classify(tt.err)))
		})
	}
	assert.NoError(t, classify(nil))
}

func TestIsPgCode(t *testing.T) {
	err := errors.Wrap(&pgconn.PgError{Code: codeUniqueViolation}, "insert")
	assert.True(t, isPgCode(err, codeUniqueViolation))
	assert.False(t, isPgCode(err, codeForeignKeyViolation))
	assert.False(t, isPgCode(errors.New("x"), codeUniqueViolation))
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"keyboard", "keyboard"},
		{"100%", `100\%`},
		{"snake_case", `snake\_case`},
		{`C:\tmp`, `C:\\tmp`},
		{`%_\`, `\%\_\\`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.in), tt.in)
	}
}
