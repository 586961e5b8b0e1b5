package parse

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHours(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected float64
	}{
		{name: "hours and minutes", input: "2h 15m", expected: 2.25},
		{name: "minutes only", input: "90m", expected: 1.5},
		{name: "empty", input: "", expected: 0.0},
		{name: "hours only", input: "3h", expected: 3.0},
		{name: "seconds only", input: "1800s", expected: 0.5},
		{name: "all tokens", input: "1h 30m 36s", expected: 1.51},
		{name: "upper case", input: "7H 30M", expected: 7.5},
		{name: "reversed order", input: "30m 7h", expected: 7.5},
		{name: "whitespace between number and unit", input: "1 h 20 m", expected: 1.33},
		{name: "no separator", input: "1h20m", expected: 1.33},
		{name: "garbage", input: "about an hour", expected: 0.0},
		{name: "zero", input: "0h 0m", expected: 0.0},
		{name: "rounding", input: "1m", expected: 0.02},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseHours(tc.input))
		})
	}
}

func TestParseHours_SumOfComponents(t *testing.T) {
	for h := 0; h < 5; h++ {
		for m := 0; m < 60; m += 7 {
			for s := 0; s < 60; s += 13 {
				in := ""
				if h > 0 {
					in += strconv.Itoa(h) + "h "
				}
				if m > 0 {
					in += strconv.Itoa(m) + "m "
				}
				if s > 0 {
					in += strconv.Itoa(s) + "s"
				}
				want := Round2(float64(h) + float64(m)/60 + float64(s)/3600)
				assert.Equal(t, want, ParseHours(in), "input %q", in)
			}
		}
	}
}
