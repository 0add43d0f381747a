package flows

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var errIdentifierInvalid = errors.New("identifier must be a phone number or an email address")

const (
	minPhoneDigits = 6
	maxPhoneDigits = 20
	maxEmailLength = 254
)

// NormalizeIdentifier trims the login identifier and lowercases it when it
// is an email address. Phone numbers are returned unchanged.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if isEmailIdentifier(identifier) {
		return strings.ToLower(identifier)
	}
	return identifier
}

func isEmailIdentifier(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// identifierRules accepts an email address, or a phone number written as an
// optional leading + followed by 6 to 20 digits.
func identifierRules(identifier string) []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.When(isEmailIdentifier(identifier),
			validation.Length(3, maxEmailLength),
			is.EmailFormat,
		).Else(validation.By(phoneNumber)),
	}
}

func phoneNumber(value interface{}) error {
	s, _ := value.(string)
	return validation.Validate(strings.TrimPrefix(s, "+"),
		validation.Required.Error("must contain digits"),
		validation.Length(minPhoneDigits, maxPhoneDigits),
		is.Digit,
	)
}

// ParseIdentifier splits a registration identifier into a phone number or
// an email address. Exactly one of the two is non-empty on success.
func ParseIdentifier(identifier string) (phone, email string, err error) {
	identifier = NormalizeIdentifier(identifier)
	if err := validation.Validate(identifier, identifierRules(identifier)...); err != nil {
		return "", "", fmt.Errorf("%w: %v", errIdentifierInvalid, err)
	}
	if isEmailIdentifier(identifier) {
		return "", identifier, nil
	}
	return identifier, "", nil
}
