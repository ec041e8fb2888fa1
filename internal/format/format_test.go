package format

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0,00"},
		{in: 5, want: "5,00"},
		{in: 999.999, want: "1 000,00"},
		{in: 1234.5, want: "1 234,50"},
		{in: 1234567.891, want: "1 234 567,89"},
		{in: 100000, want: "100 000,00"},
		{in: -1234.5, want: "-1 234,50"},
		{in: 0.125, want: "0,13"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.in))
		})
	}
}

func TestDecimal2(t *testing.T) {
	assert.Equal(t, "12.30", Decimal2(12.3))
	assert.Equal(t, "2.68", Decimal2(2.675000001))
	assert.Equal(t, "0.00", Decimal2(math.NaN()))
	assert.Equal(t, "0.00", Decimal2(math.Inf(1)))
}

func TestDecimal2_RoundsWrittenDigits(t *testing.T) {
	// Halves round on the digits as written, not on the binary value below them
	tests := []struct {
		in   float64
		want string
	}{
		{1.005, "1.01"},
		{2.675, "2.68"},
		{1.015, "1.02"},
		{-1.005, "-1.01"},
		{0.125, "0.13"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Decimal2(tt.in), "%v", tt.in)
		assert.Equal(t, strings.Replace(tt.want, ".", ",", 1), FormatNumber(tt.in), "%v", tt.in)
	}
}

func TestNumberToWords(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{in: 0, want: "zero PLN"},
		{in: 7, want: "siedem PLN"},
		{in: 10, want: "dziesięć PLN"},
		{in: 15, want: "piętnaście PLN"},
		{in: 21, want: "dwadzieścia jeden PLN"},
		{in: 100, want: "sto PLN"},
		{in: 215, want: "dwieście piętnaście PLN"},
		{in: 1000, want: "tysiąc PLN"},
		{in: 1500, want: "tysiąc pięćset PLN"},
		{in: 2345, want: "dwa tysiące trzysta czterdzieści pięć PLN"},
		{in: 5001, want: "pięć tysięcy jeden PLN"},
		{in: 9999, want: "dziewięć tysięcy dziewięćset dziewięćdziesiąt dziewięć PLN"},
		{in: 12000, want: "dwanaście tysięcy PLN"},
		{in: 22000, want: "dwadzieścia dwa tysiące PLN"},
		{in: 101010, want: "sto jeden tysięcy dziesięć PLN"},
		{in: 999999, want: "dziewięćset dziewięćdziesiąt dziewięć tysięcy dziewięćset dziewięćdziesiąt dziewięć PLN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := NumberToWords(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumberToWords_OutOfRange(t *testing.T) {
	for _, n := range []int64{-1, 1_000_000, 5_000_000} {
		_, err := NumberToWords(n)
		assert.ErrorIs(t, err, ErrAmountOutOfRange)
	}
}

func TestParseLenient(t *testing.T) {
	assert.Equal(t, 12.5, ParseLenient("12,5"))
	assert.Equal(t, 12.5, ParseLenient(" 12.5 "))
	assert.Equal(t, 0.0, ParseLenient("abc"))
	assert.Equal(t, 0.0, ParseLenient(""))
	assert.Equal(t, 0.0, ParseLenient("NaN"))
}

func TestDateConversions(t *testing.T) {
	assert.Equal(t, "2024-03-15", DateToInput("15-03-2024"))
	assert.Equal(t, "", DateToInput("2024-03-15"))
	assert.Equal(t, "", DateToInput("1-3-2024"))

	assert.Equal(t, "15-03-2024", InputToDate("2024-03-15"))
	assert.Equal(t, "", InputToDate("15-03-2024"))

	d := "31-12-2023"
	assert.Equal(t, d, InputToDate(DateToInput(d)))
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "", want: ""},
		{in: "2024-03-15", want: "2024-03-15"},
		{in: "15-03-2024", want: "2024-03-15"},
		{in: "99-99-9999", want: "9999-99-99"},
		{in: "15.03.2024", want: "15.03.2024"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDate(tt.in), tt.in)
	}
}

func TestCurrentDate(t *testing.T) {
	now := time.Date(2024, time.February, 5, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "05-02-2024", CurrentDate(now))
}
