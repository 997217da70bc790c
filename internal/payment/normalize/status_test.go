package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProcessStatusPassesRawThrough(t *testing.T) {
	for _, raw := range []string{"success", "failed", "abandoned", "reversed", ""} {
		assert.Equal(t, raw, ProcessStatus(raw))
	}
}

func TestDecimalFromAny(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"float", float64(150000), "150000", true},
		{"int", 42, "42", true},
		{"string", "1500.50", "1500.5", true},
		{"comma string", "1,500.50", "1500.5", true},
		{"blank string", "  ", "", false},
		{"garbage string", "abc", "", false},
		{"nil", nil, "", false},
		{"bool", true, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := decimalFromAny(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
			}
		})
	}
}

func TestCurrencyOrDefault(t *testing.T) {
	d := Defaults{Currency: "NGN"}
	assert.Equal(t, "USD", currencyOrDefault("usd", d))
	assert.Equal(t, "NGN", currencyOrDefault("", d))
	assert.Equal(t, "NGN", currencyOrDefault("   ", d))
}
