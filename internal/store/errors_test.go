package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		code       pq.ErrorCode
		constraint string
		kind       ConstraintKind
	}{
		{"unique", "23505", ConstraintUsersEmail, UniqueViolation},
		{"foreign key", "23503", ConstraintEventsCategory, ForeignKeyViolation},
		{"check", "23514", "ck_tickets_price", CheckViolation},
		{"not null", "23502", "", NotNullViolation},
		{"out of range", "22003", "", RangeViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &pq.Error{Code: tt.code, Constraint: tt.constraint, Message: "boom"}

			err := classify(fmt.Errorf("insert: %w", raw))

			ce, ok := AsConstraint(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, ce.Kind)
			assert.Equal(t, tt.constraint, ce.Constraint)
			assert.ErrorIs(t, err, raw)
		})
	}
}

func TestClassifyPassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("connection refused")
	assert.Same(t, plain, classify(plain))

	syntax := &pq.Error{Code: "42601"}
	_, ok := AsConstraint(classify(syntax))
	assert.False(t, ok)

	assert.NoError(t, classify(nil))
}

func TestIsConstraint(t *testing.T) {
	err := fmt.Errorf("create user: %w", &ConstraintError{Kind: UniqueViolation, Constraint: ConstraintUsersPhone})

	assert.True(t, IsConstraint(err, UniqueViolation, ConstraintUsersPhone))
	assert.False(t, IsConstraint(err, UniqueViolation, ConstraintUsersEmail))
	assert.False(t, IsConstraint(err, ForeignKeyViolation, ConstraintUsersPhone))
}

func TestToInt64s(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3}, toInt64s([]int{1, 2, 3}))
	assert.Empty(t, toInt64s(nil))
}
