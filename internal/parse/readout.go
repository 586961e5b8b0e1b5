package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	gramsRe    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*g(?:rams?)?\b`)
	slicerTime = regexp.MustCompile(`(?i)(?:(\d+)\s*h)?\s*(?:(\d+)\s*m(?:in)?\b)?`)
)

// DefaultTimeString is reported when no print time is visible in a readout.
const DefaultTimeString = "0h 0m"

// Grams returns the first filament weight found in slicer or printer readout text ("12.5 g",
// "230g", "8 grams"). It reports false when nothing matches.
func Grams(text string) (float64, bool) {
	match := gramsRe.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(match[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// TimeString returns the first print duration found in readout text normalized to "<h>h <m>m".
// Text without a duration yields DefaultTimeString and false.
func TimeString(text string) (string, bool) {
	for _, loc := range slicerTime.FindAllStringSubmatchIndex(text, -1) {
		if loc[2] < 0 && loc[4] < 0 {
			continue
		}
		h, m := 0, 0
		if loc[2] >= 0 {
			h, _ = strconv.Atoi(text[loc[2]:loc[3]])
		}
		if loc[4] >= 0 {
			m, _ = strconv.Atoi(text[loc[4]:loc[5]])
		}
		return fmt.Sprintf("%dh %dm", h, m), true
	}
	return DefaultTimeString, false
}
