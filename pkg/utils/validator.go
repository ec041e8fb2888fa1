package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nonDigitRegex    = regexp.MustCompile(`[^0-9]`)
	whitespaceRegex  = regexp.MustCompile(`\s`)
	bankAccountRegex = regexp.MustCompile(`^PL\d{26}$`)
	postalCodeRegex  = regexp.MustCompile(`\b\d{2}-\d{3}\b`)
)

// nipWeights are applied to the first nine NIP digits
var nipWeights = [9]int{6, 5, 7, 2, 3, 4, 5, 6, 7}

// DigitsOnly strips every non-digit character
func DigitsOnly(s string) string {
	return nonDigitRegex.ReplaceAllString(s, "")
}

// ValidateNIP validates a Polish tax identification number (10 digits, mod 11 checksum).
// Separators such as dashes or spaces are ignored.
func ValidateNIP(nip string) bool {
	cleaned := DigitsOnly(nip)
	if len(cleaned) != 10 {
		return false
	}

	sum := 0
	for i, weight := range nipWeights {
		sum += int(cleaned[i]-'0') * weight
	}

	return sum%11 == int(cleaned[9]-'0')
}

// ValidateBankAccount validates a Polish IBAN: "PL" followed by 26 digits with a
// correct ISO 7064 MOD-97-10 checksum. Whitespace is ignored.
func ValidateBankAccount(account string) bool {
	cleaned := whitespaceRegex.ReplaceAllString(account, "")
	if !bankAccountRegex.MatchString(cleaned) {
		return false
	}

	rearranged := cleaned[4:] + cleaned[:4]

	var numeric strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			numeric.WriteString(strconv.Itoa(int(r) - 55))
			continue
		}
		numeric.WriteRune(r)
	}

	// Reduce nine digits at a time so every chunk fits in an int
	remainder := numeric.String()
	for len(remainder) > 2 {
		end := 9
		if len(remainder) < end {
			end = len(remainder)
		}
		block, err := strconv.Atoi(remainder[:end])
		if err != nil {
			return false
		}
		remainder = strconv.Itoa(block%97) + remainder[end:]
	}

	value, err := strconv.Atoi(remainder)
	if err != nil {
		return false
	}
	return value%97 == 1
}

// ValidatePostalCode reports whether text contains a standalone NN-NNN postal code
func ValidatePostalCode(text string) bool {
	return postalCodeRegex.MatchString(text)
}

// ExtractPostalCode splits a free-text city field into its postal code token and the
// remaining town name. Only the first token is extracted.
func ExtractPostalCode(city string) (postalCode, town string) {
	loc := postalCodeRegex.FindStringIndex(city)
	if loc == nil {
		return "", strings.TrimSpace(city)
	}
	return city[loc[0]:loc[1]], strings.TrimSpace(city[:loc[0]] + city[loc[1]:])
}

// FormatNIP formats a NIP for display as XXX-XXX-XX-XX
func FormatNIP(nip string) string {
	cleaned := DigitsOnly(nip)
	if len(cleaned) != 10 {
		return nip
	}
	return cleaned[0:3] + "-" + cleaned[3:6] + "-" + cleaned[6:8] + "-" + cleaned[8:]
}

// FormatBankAccount formats a Polish IBAN in groups of four characters
func FormatBankAccount(account string) string {
	cleaned := whitespaceRegex.ReplaceAllString(account, "")
	if !bankAccountRegex.MatchString(cleaned) {
		return account
	}

	groups := make([]string, 0, 7)
	for i := 0; i < len(cleaned); i += 4 {
		end := i + 4
		if end > len(cleaned) {
			end = len(cleaned)
		}
		groups = append(groups, cleaned[i:end])
	}
	return strings.Join(groups, " ")
}
