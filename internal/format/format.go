// Package format holds the Polish number, amount and date formatting helpers shared by the
// invoice views, the XML export and the register.
package format

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	displayDateRegex = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})$`)
	inputDateRegex   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
)

// Round2 rounds half away from zero to two decimal places
func Round2(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

// Decimal2 renders v with exactly two decimals and a dot separator
func Decimal2(v float64) string {
	return Round2(v).StringFixed(2)
}

// FormatNumber renders v the Polish way: two decimals, comma separator and a space
// between thousand groups. FormatNumber(1234.5) == "1 234,50".
func FormatNumber(v float64) string {
	fixed := Decimal2(v)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}

	return sign + b.String() + "," + fracPart
}

// ParseLenient reads a user-entered amount. Comma and dot decimal separators are both
// accepted; anything unparseable is 0.
func ParseLenient(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// CurrentDate returns now as DD-MM-YYYY
func CurrentDate(now time.Time) string {
	return now.Format("02-01-2006")
}

// DateToInput converts DD-MM-YYYY to YYYY-MM-DD, or "" when s has another shape
func DateToInput(s string) string {
	m := displayDateRegex.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[3] + "-" + m[2] + "-" + m[1]
}

// InputToDate converts YYYY-MM-DD to DD-MM-YYYY, or "" when s has another shape
func InputToDate(s string) string {
	m := inputDateRegex.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[3] + "-" + m[2] + "-" + m[1]
}

// NormalizeDate accepts either date shape and returns YYYY-MM-DD. Empty input stays empty
// and unrecognized input is returned unchanged. Calendar validity is not checked.
func NormalizeDate(s string) string {
	if s == "" || inputDateRegex.MatchString(s) {
		return s
	}
	if converted := DateToInput(s); converted != "" {
		return converted
	}
	return s
}
