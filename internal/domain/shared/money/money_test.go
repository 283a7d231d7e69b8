package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalRendering(t *testing.T) {
	assert.Equal(t, "200.00", Must(20000, "ETB").Decimal())
	assert.Equal(t, "0.05", Must(5, "ETB").Decimal())
	assert.Equal(t, "-1.50", Must(-150, "ETB").Decimal())
}

func TestParseDecimal(t *testing.T) {
	cases := map[string]int64{
		"200":    20000,
		"200.5":  20050,
		"200.50": 20050,
		"0.07":   7,
	}
	for raw, want := range cases {
		got, err := ParseDecimal(raw, "etb")
		require.NoError(t, err, raw)
		assert.Equal(t, want, got.Amount, raw)
		assert.Equal(t, "ETB", got.Currency)
	}

	_, err := ParseDecimal("1.234", "ETB")
	assert.Error(t, err)
	_, err = ParseDecimal("", "ETB")
	assert.Error(t, err)
}

func TestEqualIgnoresCurrencyCase(t *testing.T) {
	assert.True(t, Must(100, "ETB").Equal(Money{Amount: 100, Currency: "etb"}))
	assert.False(t, Must(100, "ETB").Equal(Must(100, "USD")))
	assert.False(t, Must(100, "ETB").Equal(Must(101, "ETB")))
}
