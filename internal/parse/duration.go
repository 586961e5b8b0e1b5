package parse

import (
	"math"
	"regexp"
	"strconv"
)

var (
	hoursRe   = regexp.MustCompile(`(?i)(\d+)\s*h`)
	minutesRe = regexp.MustCompile(`(?i)(\d+)\s*m`)
	secondsRe = regexp.MustCompile(`(?i)(\d+)\s*s`)
)

// ParseHours converts a free-text duration such as "7h 30m" into fractional hours rounded to two
// decimals. Tokens may appear in any order and case; a missing token counts as zero. The parser is
// lenient: input without any token yields 0.
func ParseHours(s string) float64 {
	h := firstInt(hoursRe, s)
	m := firstInt(minutesRe, s)
	sec := firstInt(secondsRe, s)
	return Round2(float64(h) + float64(m)/60.0 + float64(sec)/3600.0)
}

// Round2 rounds x to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func firstInt(re *regexp.Regexp, s string) int {
	match := re.FindStringSubmatch(s)
	if len(match) < 2 {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		// Only overflow can get here; treat like a missing token.
		return 0
	}
	return n
}
