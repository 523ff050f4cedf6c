package httprpc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks call arguments before they are bound.
type Validator interface {
	// Var checks a single argument against a validator tag.
	Var(v any, tag string) error
	// Struct checks the validate struct tags of a model.
	Struct(v any) error
}

// NewValidator returns the default go-playground validator.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

var _ Validator = (*validator.Validate)(nil)

// validateArgs runs parameter tags and model struct tags over the arguments. Nil arguments
// are only checked against parameter tags, so "required" still rejects them.
func validateArgs(v Validator, params []Param, args []any) error {
	if v == nil {
		return nil
	}
	for i, p := range params {
		arg := args[i]
		if p.Validate != "" {
			if err := v.Var(arg, p.Validate); err != nil {
				return ErrInvalidArguments.MsgErr(fmt.Sprintf("argument %d (%s): %s", i, paramLabel(p), describeValidationError(err)), err)
			}
		}
		if isNil(arg) || (p.Role != RoleBodyObject && p.Role != RoleField) {
			continue
		}
		if !isStructModel(reflect.TypeOf(arg)) {
			continue
		}
		if err := v.Struct(arg); err != nil {
			return ErrInvalidArguments.MsgErr(fmt.Sprintf("argument %d (%s): %s", i, paramLabel(p), describeValidationError(err)), err)
		}
	}
	return nil
}

func isStructModel(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != timeType
}

func paramLabel(p Param) string {
	if p.Name != "" {
		return p.Name
	}
	return strings.ToLower(p.Role.String())
}

func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if field == "" {
			field = "value"
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, ", ")
}
