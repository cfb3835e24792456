package domain

import "fmt"

// ActivationReason narrows why NetworkManager rejected a profile activation.
type ActivationReason string

const (
	ReasonBadPassword ActivationReason = "bad_password"
	ReasonOther       ActivationReason = "other"
)

// ErrProfileWrite means the "connection add" step failed; no activation was
// attempted and the previous profile with the same name is already gone.
type ErrProfileWrite struct {
	Profile string
	Err     error
}

func (e ErrProfileWrite) Error() string {
	return fmt.Sprintf("write profile %q: %v", e.Profile, e.Err)
}

func (e ErrProfileWrite) Unwrap() error {
	return e.Err
}

// ErrActivationRejected means NetworkManager refused the "connection up"
// command outright. Reason is derived from the command diagnostics.
type ErrActivationRejected struct {
	Profile string
	Reason  ActivationReason
	Err     error
}

func (e ErrActivationRejected) Error() string {
	return fmt.Sprintf("activate profile %q (%s): %v", e.Profile, e.Reason, e.Err)
}

func (e ErrActivationRejected) Unwrap() error {
	return e.Err
}

// ErrInvalidRequest means the wire request could not be parsed. Nothing was
// mutated.
type ErrInvalidRequest struct {
	Detail string
}

func (e ErrInvalidRequest) Error() string {
	return "invalid request: " + e.Detail
}
