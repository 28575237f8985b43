package authz

//go:generate go tool enumer -type=DecisionStrategy -transform=upper -text
//go:generate go tool enumer -type=Logic -transform=upper -text
//go:generate go tool enumer -type=EnforcementMode -transform=upper -text

// DecisionStrategy determines how the outcomes of several policies or
// permissions are combined.
type DecisionStrategy int

// Decision strategies. The zero value is UNANIMOUS.
const (
	// Unanimous grants if no outcome is a deny.
	Unanimous DecisionStrategy = iota
	// Affirmative grants if at least one outcome is a permit.
	Affirmative
	// Consensus grants if there are more permits than denies.
	Consensus
)

// Logic determines whether a policy's outcome is inverted.
type Logic int

// Policy logic. The zero value is POSITIVE.
const (
	Positive Logic = iota
	Negative
)

// EnforcementMode determines how requests are treated when no permission
// applies to them.
type EnforcementMode int

// Enforcement modes. The zero value is ENFORCING.
const (
	// Enforcing denies requests with no applicable permission.
	Enforcing EnforcementMode = iota
	// Permissive grants requests with no applicable permission.
	Permissive
	// Disabled grants every request without evaluating policies.
	Disabled
)

// Effect is the outcome of a single policy evaluation.
type Effect int

// Effects.
const (
	Deny Effect = iota
	Permit
)

func (e Effect) String() string {
	if e == Permit {
		return "PERMIT"
	}
	return "DENY"
}
