package classify

import "fmt"

// FieldType tags a form control with the logical value it expects.
type FieldType string

const (
	None         FieldType = ""
	CardNumber   FieldType = "cardNumber"
	Exp          FieldType = "exp"
	ExpMonth     FieldType = "expMonth"
	ExpYear      FieldType = "expYear"
	CVC          FieldType = "cvc"
	FullName     FieldType = "fullName"
	Email        FieldType = "email"
	Phone        FieldType = "phone"
	AddressLine1 FieldType = "addressLine1"
	AddressLine2 FieldType = "addressLine2"
	City         FieldType = "city"
	State        FieldType = "state"
	Zip          FieldType = "zip"
	Country      FieldType = "country"
)

// FieldTypes lists every classifiable type.
var FieldTypes = []FieldType{
	CardNumber, Exp, ExpMonth, ExpYear, CVC, FullName, Email, Phone,
	AddressLine1, AddressLine2, City, State, Zip, Country,
}

// ParseFieldType validates a type name.
func ParseFieldType(s string) (FieldType, error) {
	for _, ft := range FieldTypes {
		if string(ft) == s {
			return ft, nil
		}
	}
	return None, fmt.Errorf("classify: unknown field type %q", s)
}

func (ft FieldType) String() string {
	if ft == None {
		return "none"
	}
	return string(ft)
}
