// Package ctlerr implements the error taxonomy of spec §7, mapping
// abstract error kinds to their nearest syscall.Errno, the way a DPDK
// return code gets carried as an errno value. Every API error returned
// to a ctlapi caller is a *ctlerr.Error.
package ctlerr

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind classifies an error per spec §7.
type Kind int

// Error kinds.
const (
	// Validation: malformed input (zero address, bad MAC, out-of-range id).
	Validation Kind = iota
	// Conflict: a name, key, or address is already in use.
	Conflict
	// NotFound: a lookup found nothing.
	NotFound
	// Busy: the object has residual references or required state.
	Busy
	// Resource: allocation failure or a configured limit was exceeded.
	Resource
	// Driver: a transparent pass-through of a NIC driver failure.
	Driver
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not-found"
	case Busy:
		return "busy"
	case Resource:
		return "resource"
	case Driver:
		return "driver"
	default:
		return "unknown"
	}
}

// Errno returns the Kind's nearest syscall.Errno equivalent.
func (k Kind) Errno() syscall.Errno {
	switch k {
	case Validation:
		return syscall.EINVAL
	case Conflict:
		return syscall.EEXIST
	case NotFound:
		return syscall.ENOENT
	case Busy:
		return syscall.EBUSY
	case Resource:
		return syscall.ENOMEM
	default:
		return syscall.EIO
	}
}

// Error is the concrete error type returned by every control-plane
// operation in this module.
type Error struct {
	Kind  Kind
	Errno syscall.Errno // overrides Kind.Errno() when non-zero, e.g. a driver errno
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// Syscall resolves the effective errno of e: the explicit override if
// set, else the Kind's default mapping.
func (e *Error) Syscall() syscall.Errno {
	if e.Errno != 0 {
		return e.Errno
	}
	return e.Kind.Errno()
}

// New creates an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

// FromDriver wraps a driver failure as a Driver-kind error, per spec
// §7's "transparent pass-through of NIC driver error codes".
func FromDriver(cause error, format string, args ...any) *Error {
	e := Wrap(Driver, cause, format, args...)
	var errno syscall.Errno
	if errors.As(cause, &errno) {
		e.Errno = errno
	}
	return e
}

// NoSuchDevice creates a NotFound-kind error whose errno is ENODEV,
// per spec §6's port and interface lookup misses (port.del, port.get,
// iface.set, iface.del): NotFound's default ENOENT mapping is for
// table lookups (next-hops, routes), not for a missing port id or
// interface id.
func NoSuchDevice(format string, args ...any) *Error {
	e := New(NotFound, format, args...)
	e.Errno = syscall.ENODEV
	return e
}

// NoRoute creates a NotFound-kind error whose errno is ENETUNREACH,
// per spec §6's ip4.route.get.
func NoRoute(format string, args ...any) *Error {
	e := New(NotFound, format, args...)
	e.Errno = syscall.ENETUNREACH
	return e
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
