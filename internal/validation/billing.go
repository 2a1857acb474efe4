package validation

import "strings"

// Billing form field names, in display order.
const (
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldAddress   = "address"
	FieldCity      = "city"
	FieldState     = "state"
	FieldZip       = "zip"
)

var fieldOrder = []string{
	FieldFirstName, FieldLastName, FieldEmail, FieldPhone,
	FieldAddress, FieldCity, FieldState, FieldZip,
}

// BillingForm is the in-progress billing details the UI keeps across reloads.
type BillingForm struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
}

func (f BillingForm) values() map[string]string {
	return map[string]string{
		FieldFirstName: f.FirstName,
		FieldLastName:  f.LastName,
		FieldEmail:     f.Email,
		FieldPhone:     f.Phone,
		FieldAddress:   f.Address,
		FieldCity:      f.City,
		FieldState:     f.State,
		FieldZip:       f.Zip,
	}
}

// ShippingAddress joins the address lines into the single string the checkout
// backend expects.
func (f BillingForm) ShippingAddress() string {
	var parts []string
	for _, p := range []string{f.Address, f.City, f.State, f.Zip} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Errors maps every field to its message. An empty message means valid.
type Errors map[string]string

func (e Errors) Valid() bool {
	for _, msg := range e {
		if msg != "" {
			return false
		}
	}
	return true
}

// Messages returns the non-empty messages in field display order.
func (e Errors) Messages() []string {
	var out []string
	for _, field := range fieldOrder {
		if msg := e[field]; msg != "" {
			out = append(out, msg)
		}
	}
	return out
}

// ValidateField returns the message for a single field, or "" when valid.
// Unknown fields are only checked for presence.
func ValidateField(field, value string) string {
	if strings.TrimSpace(value) == "" {
		return "This field is required"
	}
	switch field {
	case FieldFirstName, FieldLastName:
		if !IsName(value) {
			return "Must be at least 2 characters"
		}
	case FieldEmail:
		if !IsEmail(value) {
			return "Enter a valid email address"
		}
	case FieldPhone:
		if !IsPhone(value) {
			return "Enter a valid phone number"
		}
	case FieldZip:
		if !IsZip(value) {
			return "Enter a valid ZIP code"
		}
	}
	return ""
}

// ValidateBilling checks every field of the form.
func ValidateBilling(form BillingForm) Errors {
	errs := make(Errors, len(fieldOrder))
	for field, value := range form.values() {
		errs[field] = ValidateField(field, value)
	}
	return errs
}
