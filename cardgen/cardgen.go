// Package cardgen generates Luhn-valid test card numbers from a BIN prefix.
package cardgen

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// DefaultLength is the length of a generated number when none is given.
const DefaultLength = 16

// ErrInvalidPrefix is returned when the prefix cannot seed a number of the
// requested length.
var ErrInvalidPrefix = errors.New("BIN prefix must be 6-15 digits")

// minPrefix is the shortest accepted BIN.
const minPrefix = 6

// CheckDigit computes the Luhn check digit for partial, the number without
// its last digit. Non-digits are ignored.
func CheckDigit(partial string) int {
	sum := 0
	double := true
	for i := len(partial) - 1; i >= 0; i-- {
		c := partial[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// Valid reports whether number (spaces and dashes allowed) passes the Luhn
// check. Fewer than two digits is never valid.
func Valid(number string) bool {
	d := digits(number)
	if len(d) < 2 {
		return false
	}
	return CheckDigit(d[:len(d)-1]) == int(d[len(d)-1]-'0')
}

// Format groups the digits of number by four, separated by spaces.
func Format(number string) string {
	d := digits(number)
	var b strings.Builder
	for i := 0; i < len(d); i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(d[i])
	}
	return b.String()
}

// Generator builds card numbers from a digit source.
type Generator struct {
	digit func() int
}

// NewGenerator returns a Generator drawing padding digits from digit, which
// must return values in [0, 9]. A nil digit uses math/rand.
func NewGenerator(digit func() int) *Generator {
	if digit == nil {
		digit = func() int { return rand.IntN(10) }
	}
	return &Generator{digit: digit}
}

// Generate returns a length-digit number starting with the digits of bin,
// padded with random digits and closed by the Luhn check digit. length <= 0
// means DefaultLength. The prefix must hold between 6 and length-1 digits.
func (g *Generator) Generate(bin string, length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	prefix := digits(bin)
	if len(prefix) < minPrefix || len(prefix) > length-1 {
		return "", fmt.Errorf("cardgen: %q for length %d: %w", prefix, length, ErrInvalidPrefix)
	}
	b := make([]byte, 0, length)
	b = append(b, prefix...)
	for len(b) < length-1 {
		b = append(b, byte('0'+g.digit()))
	}
	return string(b) + string(rune('0'+CheckDigit(string(b)))), nil
}

var std = NewGenerator(nil)

// Generate uses a math/rand backed Generator.
func Generate(bin string, length int) (string, error) {
	return std.Generate(bin, length)
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
