package auth

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

const (
	msgName          = "Please add name"
	msgEmail         = "Please enter a valid email"
	msgPassword      = "Please enter a password with 6 or more characters"
	msgPasswordEmpty = "Password is required"

	minPasswordLength = 6
)

// FieldError is one failed input rule
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone,omitempty"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error(msgName), validation.By(notBlank(msgName))),
		validation.Field(&r.Email, validation.Required.Error(msgEmail), is.Email.Error(msgEmail)),
		validation.Field(
			&r.Password,
			validation.Required.Error(msgPassword),
			validation.Length(minPasswordLength, 0).Error(msgPassword),
		),
	)
}

func (r RegisterRequest) input() RegisterInput {
	return RegisterInput{
		Name:     strings.TrimSpace(r.Name),
		Email:    r.Email,
		Password: r.Password,
		Phone:    normalizePhone(r.Phone),
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error(msgEmail), is.Email.Error(msgEmail)),
		validation.Field(&r.Password, validation.Required.Error(msgPasswordEmpty)),
	)
}

// AttendantRequest represents the attendant creation request body
type AttendantRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone,omitempty"`
}

func (r AttendantRequest) Validate() error {
	return RegisterRequest(r).Validate()
}

func (r AttendantRequest) input() AttendantInput {
	in := RegisterRequest(r).input()
	return AttendantInput(in)
}

// notBlank fails for strings that are empty once trimmed, the form they are stored in
func notBlank(msg string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return errors.New(msg)
		}
		return nil
	}
}

// fieldOrder keeps the error list stable in request field order
var fieldOrder = map[string]int{"name": 0, "email": 1, "password": 2, "phone": 3}

// FieldErrors flattens an ozzo validation result into an ordered list.
// Returns nil if err is not a validation result.
func FieldErrors(err error) []FieldError {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]FieldError, 0, len(verrs))
	for field, ferr := range verrs {
		out = append(out, FieldError{Field: field, Msg: ferr.Error()})
	}
	sort.Slice(out, func(i, j int) bool {
		return fieldOrder[out[i].Field] < fieldOrder[out[j].Field]
	})
	return out
}

// normalizePhone stores parseable numbers in E.164 and keeps anything else as typed
func normalizePhone(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}

	num, err := phonenumbers.Parse(trimmed, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return &trimmed
	}
	formatted := phonenumbers.Format(num, phonenumbers.E164)
	return &formatted
}
