package authz

import "errors"

// ErrUnsupportedPolicyType is returned when a policy's type has no
// registered provider.
var ErrUnsupportedPolicyType = errors.New("unsupported policy type")

// ErrPolicyCycle is returned when a policy transitively associates itself.
var ErrPolicyCycle = errors.New("policy association cycle")

// ErrInvalidPolicy is returned when a policy's configuration cannot be
// parsed.
var ErrInvalidPolicy = errors.New("invalid policy configuration")

// ErrInvalidRepresentation is returned when an imported representation is
// malformed or references unknown objects.
var ErrInvalidRepresentation = errors.New("invalid representation")

// ErrNotFound is returned by Store and Directory implementations if there is
// no result.
var ErrNotFound = errors.New("not found")
