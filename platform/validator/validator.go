// Package validator wraps go-playground struct-tag validation behind one
// shared instance, so request payload rules live on the transport structs.
package validator

import "github.com/go-playground/validator/v10"

// Validator checks transport structs against their `validate` tags. One
// instance is built at startup and handed to every module's handler.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New()}
}

// Struct runs tag validation over every field of s.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var checks a single value against a tag expression, e.g. "required,uuid".
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation adds a named rule for tags the built-in set lacks.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
