package payment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// CardDetails is what the payment form collects. Only the number ever
// leaves the client, and only on the demo completion call.
type CardDetails struct {
	HolderName string
	Number     string
	Expiry     string // MM/YY
	CVC        string
}

// ValidationError points at the field that failed, so the form can
// highlight it. Validation is purely local; no request is made for
// invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the card details without touching the network. The demo
// backend has the final say on which numbers it accepts; this only catches
// input that no issuer could have produced.
func (c CardDetails) Validate() error {
	if strings.TrimSpace(c.HolderName) == "" {
		return &ValidationError{Field: "holder_name", Message: "cardholder name is required"}
	}

	number := normalizeNumber(c.Number)
	if len(number) < 13 || len(number) > 19 || !digitsOnly(number) {
		return &ValidationError{Field: "number", Message: "card number must be 13 to 19 digits"}
	}
	if !luhnValid(number) {
		return &ValidationError{Field: "number", Message: "card number failed checksum"}
	}

	if err := validateExpiry(c.Expiry, time.Now()); err != nil {
		return err
	}

	if len(c.CVC) < 3 || len(c.CVC) > 4 || !digitsOnly(c.CVC) {
		return &ValidationError{Field: "cvc", Message: "security code must be 3 or 4 digits"}
	}
	return nil
}

// normalizeNumber strips the spaces and dashes users type between groups.
func normalizeNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func validateExpiry(expiry string, now time.Time) error {
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 {
		return &ValidationError{Field: "expiry", Message: "expiry must be MM/YY"}
	}
	month, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	year, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || month < 1 || month > 12 || len(strings.TrimSpace(parts[1])) != 2 {
		return &ValidationError{Field: "expiry", Message: "expiry must be MM/YY"}
	}

	// Cards are valid through the last day of the printed month.
	year += 2000
	expiresEnd := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	if !now.Before(expiresEnd) {
		return &ValidationError{Field: "expiry", Message: "card has expired"}
	}
	return nil
}

func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
