// Package faults defines the error taxonomy shared by the canvas core:
// validation, connectivity, provider, timeout, auth and not-found failures.
// Components wrap one of the sentinels so callers can branch with errors.Is.
package faults

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrConnectivity = errors.New("connectivity error")
	ErrProvider     = errors.New("provider error")
	ErrTimeout      = errors.New("timeout")
	ErrAuth         = errors.New("authentication error")
	ErrNotFound     = errors.New("not found")
)

type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindValidation   Kind = "validation"
	KindConnectivity Kind = "connectivity"
	KindProvider     Kind = "provider"
	KindTimeout      Kind = "timeout"
	KindAuth         Kind = "auth"
	KindNotFound     Kind = "not_found"
)

// Classify maps an error to its taxonomy kind. Raw network failures that were
// never wrapped are recognised as connectivity errors.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrProvider):
		return KindProvider
	case IsConnectivity(err):
		return KindConnectivity
	}
	return KindUnknown
}

// IsConnectivity reports whether err is a transient network failure worth retrying.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectivity) {
		return true
	}
	// a caller giving up is not a network problem
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Connectivity wraps err as a connectivity failure.
func Connectivity(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrConnectivity, err)
}

// Provider builds a provider failure carrying the provider's message.
func Provider(msg string) error {
	return fmt.Errorf("%w: %s", ErrProvider, msg)
}
