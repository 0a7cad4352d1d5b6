package main

import "errors"

// Error kinds from spec.md §7. Tool and orchestrator code wraps one of these
// with fmt.Errorf("%w: ...", ErrXxx) so callers can classify failures with
// errors.Is without parsing strings.
var (
	ErrBadArgument       = errors.New("bad argument")
	ErrPathEscape        = errors.New("path escapes working root")
	ErrNotFound          = errors.New("not found")
	ErrDenied            = errors.New("denied")
	ErrIO                = errors.New("io error")
	ErrConflict          = errors.New("already exists")
	ErrIntegrityMismatch = errors.New("integrity mismatch")
	ErrReadonly          = errors.New("tool approvals are set to readonly")
	ErrTransport         = errors.New("transport error")
	ErrCancelled         = errors.New("cancelled")
	ErrCorrupt           = errors.New("corrupt session")
	ErrNameAmbiguous     = errors.New("ambiguous name")
)
