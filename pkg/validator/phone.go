package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates the national number is not 9 to 12 digits after the leading 8
	ErrInvalidLength = errors.New("phone number must have 10 to 13 digits in 08xx format")

	// ErrInvalidPrefix indicates the number is not an Indonesian mobile number
	ErrInvalidPrefix = errors.New("phone number must be an Indonesian mobile number starting with 08, 628 or +628")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")
)

// operatorPrefixes maps the 4-digit local prefix (08xx) to its operator
var operatorPrefixes = map[string]string{
	"0811": "Telkomsel", "0812": "Telkomsel", "0813": "Telkomsel",
	"0821": "Telkomsel", "0822": "Telkomsel", "0823": "Telkomsel",
	"0851": "Telkomsel", "0852": "Telkomsel", "0853": "Telkomsel",
	"0814": "Indosat", "0815": "Indosat", "0816": "Indosat",
	"0855": "Indosat", "0856": "Indosat", "0857": "Indosat", "0858": "Indosat",
	"0817": "XL", "0818": "XL", "0819": "XL", "0859": "XL", "0877": "XL", "0878": "XL",
	"0831": "Axis", "0832": "Axis", "0833": "Axis", "0838": "Axis",
	"0881": "Smartfren", "0882": "Smartfren", "0883": "Smartfren", "0884": "Smartfren",
	"0885": "Smartfren", "0886": "Smartfren", "0887": "Smartfren", "0888": "Smartfren", "0889": "Smartfren",
	"0895": "Tri", "0896": "Tri", "0897": "Tri", "0898": "Tri", "0899": "Tri",
}

// phoneRegex matches digits only
var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator handles phone number validation
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates an Indonesian mobile number
// Accepts: 081234567890, 0812-3456-7890, 6281234567890, +62 812 3456 7890
// Returns the local form (08...) and an error if invalid
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if phone == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	if !strings.HasPrefix(sanitized, "08") {
		return "", ErrInvalidPrefix
	}

	if len(sanitized) < 10 || len(sanitized) > 13 {
		return "", ErrInvalidLength
	}

	return sanitized, nil
}

// Sanitize removes separators and rewrites the 62 country code to a leading 0
func (v *PhoneValidator) Sanitize(phone string) string {
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	phone = strings.ReplaceAll(phone, "(", "")
	phone = strings.ReplaceAll(phone, ")", "")
	phone = strings.ReplaceAll(phone, "+", "")
	phone = strings.ReplaceAll(phone, ".", "")

	if strings.HasPrefix(phone, "62") {
		phone = "0" + phone[2:]
	}

	return phone
}

// Normalize returns the international form without plus (628...) used by SMS gateways
func (v *PhoneValidator) Normalize(phone string) (string, error) {
	local, err := v.Validate(phone)
	if err != nil {
		return "", err
	}
	return "62" + local[1:], nil
}

// Format formats a phone number for display: 0812-3456-7890
func (v *PhoneValidator) Format(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s-%s",
		sanitized[0:4],
		sanitized[4:8],
		sanitized[8:],
	), nil
}

// GetOperator returns the mobile operator name based on prefix
func (v *PhoneValidator) GetOperator(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}

	if operator, ok := operatorPrefixes[sanitized[:4]]; ok {
		return operator, nil
	}
	return "", ErrInvalidPrefix
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
