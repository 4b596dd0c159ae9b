package dtoapi

import "github.com/bjaus/dtoapi/dto/constraint"

// SelfValidator is implemented by request types that validate themselves.
type SelfValidator = constraint.SelfValidator

// Validator validates any request.
type Validator interface {
	Validate(req any) error
}
