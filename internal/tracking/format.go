package tracking

import (
	"math"
	"strconv"
	"strings"

	"locationagent/internal/location"
)

const (
	initialStatusText = "Location: null"
	unavailableText   = "Location unavailable"
)

// FormatStatus renders a fix as "Location: (<lat>, <lon>)", keeping only
// the last three characters of each coordinate's canonical text form
// (see coordinateText).
func FormatStatus(f location.Fix) string {
	return "Location: (" + lastDigits(f.Latitude) + ", " + lastDigits(f.Longitude) + ")"
}

func lastDigits(v float64) string {
	s := coordinateText(v)
	if len(s) > 3 {
		return s[len(s)-3:]
	}
	return s
}

// coordinateText is the shortest round-trip text of v with at least one
// fractional digit. Magnitudes outside [1e-3, 1e7) use a mantissa and an
// unpadded exponent: 10 -> "10.0", 0.0001 -> "1.0E-4", 1.5e7 -> "1.5E7".
func coordinateText(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}

	if abs := math.Abs(v); abs >= 1e-3 && abs < 1e7 {
		return withFraction(strconv.FormatFloat(v, 'f', -1, 64))
	}

	s := strconv.FormatFloat(v, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	n, _ := strconv.Atoi(exp)
	return withFraction(mantissa) + "E" + strconv.Itoa(n)
}

func withFraction(s string) string {
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}

func waitingText(reason location.Precondition) string {
	return "Waiting: " + reason.String()
}
