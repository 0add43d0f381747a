package flows

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	errPasswordBlank    = validation.NewError("validation_password_blank", "must not be blank")
	errPasswordMismatch = validation.NewError("validation_password_mismatch", "must match the password")
)

// registerForm is the registration payload after identifier normalization.
type registerForm struct {
	Identifier      string `json:"phoneOrEmail"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`

	minPassword int
	maxPassword int
}

func (f registerForm) Validate() error {
	passwordRules := []validation.Rule{validation.Required}
	if f.minPassword > 0 || f.maxPassword > 0 {
		passwordRules = append(passwordRules, validation.Length(f.minPassword, f.maxPassword))
	}
	passwordRules = append(passwordRules, validation.By(notBlank))

	return validation.ValidateStruct(&f,
		validation.Field(&f.Identifier, identifierRules(f.Identifier)...),
		validation.Field(&f.Password, passwordRules...),
		validation.Field(&f.ConfirmPassword, validation.By(equalsString(f.Password))),
	)
}

func notBlank(value interface{}) error {
	if s, _ := value.(string); s != "" && strings.TrimSpace(s) == "" {
		return errPasswordBlank
	}
	return nil
}

func equalsString(want string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s != want {
			return errPasswordMismatch
		}
		return nil
	}
}

// registerFormField names the first rejected field in identifier, password,
// confirmation order. Anything that is not a field error reports the
// identifier.
func registerFormField(err error) (string, error) {
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return "phoneOrEmail", err
	}
	for _, name := range []string{"phoneOrEmail", "password", "confirmPassword"} {
		if fieldErr := fields[name]; fieldErr != nil {
			return name, fieldErr
		}
	}
	return "phoneOrEmail", err
}
