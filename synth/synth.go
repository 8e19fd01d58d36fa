// Package synth turns a field type and the operator's value source into the
// exact string to inject.
//
// Value is the type-level transform. ForControl and SelectCandidates refine
// it for the target control: a maxlength-constrained text box, or a select
// whose options may spell a month as "03", "March" or "Mar".
package synth

import (
	"strconv"
	"strings"

	"github.com/hazyhaar/payfill/classify"
	"github.com/hazyhaar/payfill/settings"
)

// Value returns the string for ft, "" when there is nothing to inject.
func Value(ft classify.FieldType, src settings.ValueSource) string {
	switch ft {
	case classify.CardNumber:
		return settings.Digits(src.CardNumber)
	case classify.Exp:
		return Expiry(src.ExpMonth, src.ExpYear)
	case classify.ExpMonth:
		return PadTwo(settings.Digits(src.ExpMonth))
	case classify.ExpYear:
		return settings.Digits(src.ExpYear)
	case classify.CVC:
		return settings.Digits(src.CVC)
	case classify.FullName:
		return src.FullName
	case classify.Email:
		return src.Email
	case classify.Phone:
		return src.Phone
	case classify.AddressLine1:
		return src.AddressLine1
	case classify.AddressLine2:
		return src.AddressLine2
	case classify.City:
		return src.City
	case classify.State:
		return src.State
	case classify.Zip:
		return src.Zip
	case classify.Country:
		return src.Country
	default:
		return ""
	}
}

// Expiry formats MM/YY. A four-digit year keeps its last two digits; shorter
// years are left-padded. Either component missing yields "".
func Expiry(month, year string) string {
	mm := PadTwo(settings.Digits(month))
	yy := settings.Digits(year)
	if mm == "" || yy == "" {
		return ""
	}
	if len(yy) == 4 {
		yy = yy[2:]
	} else {
		yy = PadTwo(yy)
	}
	return mm + "/" + yy
}

// PadTwo left-pads s with zeros to two characters. Longer strings and ""
// are returned unchanged.
func PadTwo(s string) string {
	if s == "" || len(s) >= 2 {
		return s
	}
	return "0" + s
}

// Month parses the digits of s as a calendar month.
func Month(s string) (int, bool) {
	n, err := strconv.Atoi(settings.Digits(s))
	if err != nil || n < 1 || n > 12 {
		return 0, false
	}
	return n, true
}

// ForControl adapts value to a free-text control with the given maxlength
// (-1 when unconstrained). A month box of length 1 gets the unpadded month;
// a year box of length 2 or less gets two digits. ok is false when the value
// cannot go in at all.
func ForControl(ft classify.FieldType, value string, maxLength int) (string, bool) {
	switch ft {
	case classify.ExpMonth:
		n, ok := Month(value)
		if !ok {
			return "", false
		}
		if maxLength > 0 && maxLength <= 1 {
			return strconv.Itoa(n), true
		}
		return PadTwo(strconv.Itoa(n)), true
	case classify.ExpYear:
		digits := settings.Digits(value)
		if digits == "" {
			return "", false
		}
		if maxLength > 0 && maxLength <= 2 {
			if len(digits) > 2 {
				return digits[len(digits)-2:], true
			}
			return PadTwo(digits), true
		}
		return digits, true
	default:
		return value, value != ""
	}
}

var monthNames = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// MonthCandidates lists the spellings a month select may use: "3", "03",
// "march", "mar". Nil when value is not a month.
func MonthCandidates(value string) []string {
	n, ok := Month(value)
	if !ok {
		return nil
	}
	name := monthNames[n-1]
	return []string{strconv.Itoa(n), PadTwo(strconv.Itoa(n)), name, name[:3]}
}

// YearCandidates lists the four- and two-digit forms of a year. A two-digit
// year is read as 20YY.
func YearCandidates(value string) []string {
	digits := settings.Digits(value)
	if digits == "" {
		return nil
	}
	full := digits
	if len(digits) == 2 {
		full = "20" + digits
	}
	short := full
	if len(full) > 2 {
		short = full[len(full)-2:]
	}
	return []string{full, short}
}

// SelectCandidates lists the strings a select option may match for ft.
func SelectCandidates(ft classify.FieldType, value string) []string {
	if value == "" {
		return nil
	}
	switch ft {
	case classify.ExpMonth:
		return MonthCandidates(value)
	case classify.ExpYear:
		return YearCandidates(value)
	case classify.Country:
		return []string{value, strings.ToUpper(value), strings.ToLower(value)}
	default:
		return []string{value}
	}
}
