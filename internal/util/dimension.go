package util

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// fractionDenominator fixes imperial display resolution at 1/32 inch.
const fractionDenominator = 32

var profilePattern = regexp.MustCompile(`^\d[Xx]\d{1,2}$`)

// ValidProfile reports whether a lumber profile string looks like a nominal
// size (2X4, 4x6, etc.). Table membership is checked separately.
func ValidProfile(profile string) bool {
	return profilePattern.MatchString(profile)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ReduceFraction divides numerator and denominator by their greatest
// common divisor.
func ReduceFraction(numerator, denominator int) (int, int) {
	if numerator == 0 {
		return 0, denominator
	}
	d := gcd(numerator, denominator)
	return numerator / d, denominator / d
}

// FormatDistance renders a distance in inches as feet/inches/fraction, e.g.
// 13.5 -> "1ft. 1-1/2in.". When metric, the value is rendered verbatim with
// an mm suffix; the caller must already have converted. Returns "" only for
// a distance of exactly 0.
func FormatDistance(distance float64, metric bool) string {
	if metric {
		return FormatFloat(distance) + "mm"
	}

	feet := int(math.Floor(distance / 12))
	remaining := math.Mod(distance, 12)
	wholeInches := int(math.Floor(remaining))
	fractional := remaining - float64(wholeInches)

	fraction := ""
	if fractional > 0 {
		numerator := int(math.Round(fractional * fractionDenominator))
		num, den := ReduceFraction(numerator, fractionDenominator)
		if num > 0 {
			fraction = fmt.Sprintf("%d/%d", num, den)
		}
	}

	var b strings.Builder
	if feet > 0 {
		fmt.Fprintf(&b, "%dft.", feet)
	}

	inches := false
	if wholeInches > 0 {
		inches = true
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(wholeInches))
	}
	if fraction != "" {
		if inches {
			b.WriteByte('-')
		} else if b.Len() > 0 {
			b.WriteByte(' ')
		}
		inches = true
		b.WriteString(fraction)
	}
	if inches {
		b.WriteString("in.")
	}

	return strings.TrimSpace(b.String())
}

// BoardFeet computes billable board footage from a length in inches and a
// nominal profile. Partial feet are billed as full feet, so the length is
// rounded up to the next whole multiple of 12.
func BoardFeet(length float64, profile string) (float64, error) {
	if math.Mod(length, 12) != 0 {
		length = math.Ceil(length/12) * 12
	}
	parts := strings.SplitN(strings.ToLower(profile), "x", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid profile: %s", profile)
	}
	thickness, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid profile: %s", profile)
	}
	width, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid profile: %s", profile)
	}
	return float64(width) * float64(thickness) * length / 144, nil
}

// FormatFloat renders a float the shortest way that round-trips, for
// identity strings and display text.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
