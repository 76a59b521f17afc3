// Package money converts between display-formatted price strings and
// integer minor units (cents). All arithmetic in the rest of the codebase
// is done in cents; formatting happens only at the API boundary.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseDisplayPrice extracts the numeric content of a display price such as
// "$49.99" or "NOK 1,299.00" and returns it in cents. Only digits and the
// first decimal point are considered; currency symbols and grouping
// characters are discarded. A string with no numeric content yields 0.
func ParseDisplayPrice(s string) int64 {
	var b strings.Builder
	seenDot := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenDot:
			b.WriteRune(r)
			seenDot = true
		}
	}
	if b.Len() == 0 || b.String() == "." {
		return 0
	}

	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

// FormatCents renders cents as a dollar display string, e.g. 2550 -> "$25.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
