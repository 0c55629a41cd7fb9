package bot

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

var (
	wholeNumber = regexp.MustCompile(`^(\d+(\.\d+)?)$`)
	anyNumber   = regexp.MustCompile(`(\d+(\.\d+)?)`)
)

// ParseAmount extracts an amount from inputs like "50000", "50,000" or "₹50,000".
// When the whole input is not a number, the first number inside it is used.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, "₹", "")
	s = strings.ReplaceAll(s, ",", "")

	match := wholeNumber.FindString(s)
	if match == "" {
		match = anyNumber.FindString(s)
	}
	if match == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatCurrency renders the integer part of x in rupees with thousands separators.
// Amounts beyond the int64 range are formatted exactly.
func FormatCurrency(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "₹" + strconv.FormatFloat(x, 'f', -1, 64)
	}
	whole, _ := new(big.Float).SetFloat64(x).Int(nil)
	return "₹" + humanize.BigComma(whole)
}

// Amount is a numeric column that PostgREST may hand back as a number,
// a quoted numeric string, or null
type Amount float64

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*a = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*a = Amount(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// Float returns the amount as a float64
func (a Amount) Float() float64 {
	return float64(a)
}
