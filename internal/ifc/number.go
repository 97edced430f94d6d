package ifc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrNotANumber = errors.New("not a number")

// ParseReal parses a STEP real. Reals written with a trailing dot ("3.")
// are accepted. NaN and infinities are rejected.
func ParseReal(text string) (float64, error) {
	s := strings.TrimSpace(text)
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, text)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, text)
	}
	return f, nil
}
