package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatEuro renders "€1,234.50".
func FormatEuro(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	cents := int64(math.Round(amount * 100))
	return fmt.Sprintf("%s€%s.%02d", sign, formatThousand(cents/100), cents%100)
}

// RoundCents rounds half away from zero to two decimals.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}
