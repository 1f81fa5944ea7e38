package tree

import (
	"math"
	"strconv"
	"strings"
)

// appendInt appends x in base 10.
func appendInt(buf []byte, x int64) []byte {
	return strconv.AppendInt(buf, x, 10)
}

// appendFloat appends v the way Python's repr prints a float: shortest
// round-trip digits, a trailing ".0" for integral values, and exponent form
// below 1e-4 or from 1e16 upward. Non-finite values become null.
func appendFloat(buf []byte, v float64) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return append(buf, "null"...)
	}
	if v == 0 {
		if math.Signbit(v) {
			return append(buf, "-0.0"...)
		}
		return append(buf, "0.0"...)
	}

	exp := decimalExponent(v)
	if exp < -4 || exp >= 16 {
		return strconv.AppendFloat(buf, v, 'e', -1, 64)
	}

	start := len(buf)
	buf = strconv.AppendFloat(buf, v, 'f', -1, 64)
	if !strings.ContainsRune(string(buf[start:]), '.') {
		buf = append(buf, ".0"...)
	}
	return buf
}

// appendFixed appends v with exactly prec digits after the decimal point
// (printf "%.Nf"). Non-finite values become null.
func appendFixed(buf []byte, v float64, prec int) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return append(buf, "null"...)
	}
	return strconv.AppendFloat(buf, v, 'f', prec, 64)
}

// appendLabelFixed is appendFixed for text inside labels, where non-finite
// values print as nan, inf and -inf.
func appendLabelFixed(buf []byte, v float64, prec int) []byte {
	switch {
	case math.IsNaN(v):
		return append(buf, "nan"...)
	case math.IsInf(v, 1):
		return append(buf, "inf"...)
	case math.IsInf(v, -1):
		return append(buf, "-inf"...)
	}
	return strconv.AppendFloat(buf, v, 'f', prec, 64)
}

// decimalExponent returns the exponent of v's shortest scientific form.
func decimalExponent(v float64) int {
	s := strconv.FormatFloat(v, 'e', -1, 64)
	i := strings.LastIndexByte(s, 'e')
	exp, _ := strconv.Atoi(s[i+1:])
	return exp
}
