package fmt

import (
	"strconv"
	"strings"
)

// SprintFloat formats value with at most decimal digits, trimming trailing zeroes. Negative zero
// is printed as "0".
func SprintFloat(value float64, decimal uint) string {
	floatStr := strconv.FormatFloat(value, 'f', int(decimal), 64)
	if decimal > 0 {
		floatStr = strings.TrimRight(strings.TrimRight(floatStr, "0"), ".")
	}
	if floatStr == "-0" {
		return "0"
	}
	return floatStr
}

// SprintWord formats a G-code word such as "X-1.25".
func SprintWord(letter string, value float64, decimal uint) string {
	return letter + SprintFloat(value, decimal)
}
