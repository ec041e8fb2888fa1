package format

import (
	"errors"
	"strings"
)

// ErrAmountOutOfRange is returned for amounts NumberToWords cannot spell
var ErrAmountOutOfRange = errors.New("amount out of range for words")

// MaxWordsAmount is the largest amount NumberToWords accepts
const MaxWordsAmount = 999_999

var (
	onesWords = [10]string{
		"zero", "jeden", "dwa", "trzy", "cztery",
		"pięć", "sześć", "siedem", "osiem", "dziewięć",
	}
	teenWords = [10]string{
		"dziesięć", "jedenaście", "dwanaście", "trzynaście", "czternaście",
		"piętnaście", "szesnaście", "siedemnaście", "osiemnaście", "dziewiętnaście",
	}
	tensWords = [10]string{
		"", "", "dwadzieścia", "trzydzieści", "czterdzieści",
		"pięćdziesiąt", "sześćdziesiąt", "siedemdziesiąt",
		"osiemdziesiąt", "dziewięćdziesiąt",
	}
	hundredWords = [10]string{
		"", "sto", "dwieście", "trzysta", "czterysta",
		"pięćset", "sześćset", "siedemset", "osiemset", "dziewięćset",
	}
)

// NumberToWords spells a whole PLN amount in Polish, e.g. 1500 -> "tysiąc pięćset PLN".
// Amounts below zero or above MaxWordsAmount return ErrAmountOutOfRange.
func NumberToWords(n int64) (string, error) {
	if n < 0 || n > MaxWordsAmount {
		return "", ErrAmountOutOfRange
	}
	if n == 0 {
		return onesWords[0] + " PLN", nil
	}

	parts := make([]string, 0, 8)

	if thousands := n / 1000; thousands > 0 {
		if thousands == 1 {
			parts = append(parts, "tysiąc")
		} else {
			parts = append(parts, hundredsToWords(thousands)...)
			parts = append(parts, thousandForm(thousands))
		}
	}
	parts = append(parts, hundredsToWords(n%1000)...)

	return strings.Join(parts, " ") + " PLN", nil
}

// hundredsToWords spells 1..999; zero yields no words
func hundredsToWords(n int64) []string {
	var parts []string

	hundreds := n / 100
	tens := (n % 100) / 10
	ones := n % 10

	if hundreds > 0 {
		parts = append(parts, hundredWords[hundreds])
	}
	if tens == 1 {
		return append(parts, teenWords[ones])
	}
	if tens > 1 {
		parts = append(parts, tensWords[tens])
	}
	if ones > 0 {
		parts = append(parts, onesWords[ones])
	}
	return parts
}

// thousandForm picks the plural of "tysiąc" for counts above one
func thousandForm(count int64) string {
	lastTwo := count % 100
	last := count % 10
	if last >= 2 && last <= 4 && (lastTwo < 12 || lastTwo > 14) {
		return "tysiące"
	}
	return "tysięcy"
}
