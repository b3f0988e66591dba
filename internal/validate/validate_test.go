package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiketi/apiserver/internal/apperr"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"jane@example.com", "jane@example.com", true},
		{"  Jane@Example.COM ", "jane@example.com", true},
		{"jane.example.com", "", false},
		{"@example.com", "", false},
		{"jane@", "", false},
		{"jane@@example.com", "", false},
		{"ja ne@example.com", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Email(tt.in)
			if !tt.ok {
				require.Error(t, err)
				assert.Equal(t, apperr.KindInvalidEmail, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhoneAcceptsInternationalNumber(t *testing.T) {
	got, err := Phone("+254712345678")

	require.NoError(t, err)
	assert.Equal(t, "+254712345678", got)
}

func TestPhoneNormalisesFormatting(t *testing.T) {
	got, err := Phone(" +254 712 345 678 ")

	require.NoError(t, err)
	assert.Equal(t, "+254712345678", got)
}

func TestPhoneRequiresPlusPrefix(t *testing.T) {
	_, err := Phone("0712345678")

	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInvalidPhone, e.Kind)
	assert.Contains(t, e.Message, "+")
}

func TestPhoneRejectsInvalidNumber(t *testing.T) {
	for _, in := range []string{"+", "+254", "+2541", "+abc", "+999123456789"} {
		t.Run(in, func(t *testing.T) {
			_, err := Phone(in)

			require.Error(t, err)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindInvalidPhone, e.Kind)
			assert.Equal(t, "phone number is not valid", e.Message)
		})
	}
}

var testSchema = Schema{
	{Name: "name", Required: true, Message: "Ticket name is required"},
	{Name: "price", Required: true, Type: Int, Min: AtLeast(0), Max: AtMost(MaxInt32)},
	{Name: "note"},
}

func TestSchemaCheck(t *testing.T) {
	price := 100
	negative := -1
	ceiling := MaxInt32
	overflow := ceiling
	overflow++

	tests := []struct {
		name   string
		values map[string]any
		kind   apperr.Kind
		field  string
	}{
		{"valid", map[string]any{"name": "VIP", "price": &price}, "", ""},
		{"valid plain int", map[string]any{"name": "VIP", "price": 0}, "", ""},
		{"missing name", map[string]any{"price": &price}, apperr.KindMissingField, "name"},
		{"blank name", map[string]any{"name": "  ", "price": &price}, apperr.KindMissingField, "name"},
		{"nil pointer price", map[string]any{"name": "VIP", "price": (*int)(nil)}, apperr.KindMissingField, "price"},
		{"negative price", map[string]any{"name": "VIP", "price": &negative}, apperr.KindInvalidInput, "price"},
		{"price at int32 ceiling", map[string]any{"name": "VIP", "price": &ceiling}, "", ""},
		{"price above int32 ceiling", map[string]any{"name": "VIP", "price": &overflow}, apperr.KindInvalidInput, "price"},
		{"wrong type", map[string]any{"name": "VIP", "price": "ten"}, apperr.KindInvalidInput, "price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testSchema.Check(tt.values)
			if tt.kind == "" {
				require.NoError(t, err)
				return
			}
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestSchemaCheckReportsFirstMissingFieldInOrder(t *testing.T) {
	err := testSchema.Check(map[string]any{})

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "name", e.Field)
	assert.Equal(t, "Ticket name is required", e.Message)
}

func TestPasswordLength(t *testing.T) {
	require.NoError(t, Password(strings.Repeat("p", MaxPasswordBytes)))

	err := Password(strings.Repeat("p", MaxPasswordBytes+1))
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInvalidInput, e.Kind)
	assert.Equal(t, "password", e.Field)
	assert.Equal(t, "password must be at most 72 bytes", e.Message)

	// multi-byte characters count by encoded length
	assert.Error(t, Password(strings.Repeat("é", 37)))
}
