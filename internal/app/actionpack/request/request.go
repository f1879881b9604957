package request

import (
	"errors"
	"regexp"
	"slices"

	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/dennishilgert/actionpack/internal/pkg/naming"
	"github.com/go-playground/validator/v10"
)

const (
	MissingActionNameMessage = "Warning: No action name provided, please specify action_name."
	MissingActionDataMessage = "Warning: No action data provided, please specify action_data."
	InvalidActionKindMessage = "Warning: action_kind can only be set to either python:2 or python:3"
	InvalidNameMessage       = "Warning: action_name and action_namespace may only contain letters, digits, spaces and the characters _ @ . -"
)

var (
	// DefaultKind is used when the request does not specify a kind.
	DefaultKind = "python:2"

	// DefaultAllowedKinds are the kinds accepted when no allow list is configured.
	DefaultAllowedKinds = []string{"python:2", "python:3"}

	// Entity names of the platform, see the namespace and action naming rules of the management API.
	entityNamePattern = regexp.MustCompile(`^[\w]([\w@ .-]*[\w@.-])?$`)
)

// Request is the input of a single build invocation.
type Request struct {
	ActionName      string `json:"action_name" yaml:"action_name" validate:"required,entityname"`
	ActionData      string `json:"action_data" yaml:"action_data" validate:"required"`
	ActionNamespace string `json:"action_namespace,omitempty" yaml:"action_namespace" validate:"omitempty,entityname"`
	ActionMain      string `json:"action_main,omitempty" yaml:"action_main"`
	ActionKind      string `json:"action_kind,omitempty" yaml:"action_kind" validate:"omitempty,actionkind"`
}

// Validator checks requests before any filesystem or network work is done.
type Validator interface {
	Validate(req *Request) error
}

type requestValidator struct {
	validate     *validator.Validate
	allowedKinds []string
}

// NewValidator creates a new Validator. An empty allow list falls back to DefaultAllowedKinds.
func NewValidator(allowedKinds []string) Validator {
	if len(allowedKinds) == 0 {
		allowedKinds = DefaultAllowedKinds
	}
	v := &requestValidator{
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		allowedKinds: slices.Clone(allowedKinds),
	}
	v.validate.RegisterValidation("entityname", func(fl validator.FieldLevel) bool {
		return entityNamePattern.MatchString(fl.Field().String())
	})
	v.validate.RegisterValidation("actionkind", func(fl validator.FieldLevel) bool {
		return slices.Contains(v.allowedKinds, fl.Field().String())
	})
	return v
}

// Validate checks the request fields in order: name, data, name format, kind.
// The first failing check determines the returned validation fault.
func (v *requestValidator) Validate(req *Request) error {
	if req == nil {
		return faults.New(faults.Validation, MissingActionNameMessage)
	}
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return faults.Wrap(faults.Validation, err, "Error during request validation")
	}

	failed := map[string]string{}
	for _, fieldErr := range validationErrors {
		failed[fieldErr.Field()] = fieldErr.Tag()
	}
	switch {
	case failed["ActionName"] == "required":
		return faults.New(faults.Validation, MissingActionNameMessage)
	case failed["ActionData"] == "required":
		return faults.New(faults.Validation, MissingActionDataMessage)
	case failed["ActionName"] != "" || failed["ActionNamespace"] != "":
		return faults.New(faults.Validation, InvalidNameMessage)
	case failed["ActionKind"] != "":
		return faults.New(faults.Validation, InvalidActionKindMessage)
	}
	return faults.Wrap(faults.Validation, err, "Error during request validation")
}

// ApplyDefaults fills the optional fields that were left empty.
func ApplyDefaults(req *Request, defaultKind string) {
	if req.ActionNamespace == "" {
		req.ActionNamespace = naming.DefaultNamespace
	}
	if req.ActionKind == "" {
		if defaultKind == "" {
			defaultKind = DefaultKind
		}
		req.ActionKind = defaultKind
	}
}
