package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Load after Close.
	ErrClosed = errors.New("cache: closed")
	// ErrInvalidCapacity reports a negative Options.Capacity.
	ErrInvalidCapacity = errors.New("cache: capacity must be positive")
	// ErrNilResolver reports a missing resolver.
	ErrNilResolver = errors.New("cache: resolver is nil")
	// ErrInvalidConcurrency reports a negative Options.MaxConcurrentLoads.
	ErrInvalidConcurrency = errors.New("cache: MaxConcurrentLoads must not be negative")
	// ErrInvalidListener is the panic value of Subscribe for a nil or
	// non-comparable listener.
	ErrInvalidListener = errors.New("cache: listener is nil or not comparable")
)

// ConfigError is returned by New for invalid Options.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("cache config %s: %v", e.Field, e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }

// ListenerError wraps a panic raised by a listener during notification.
// The panic is isolated: remaining listeners still run and cache state is
// unaffected.
type ListenerError struct {
	Key   any
	Panic any
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("cache: listener for key %v panicked: %v", e.Key, e.Panic)
}

// Unwrap exposes the panic value when it was an error.
func (e *ListenerError) Unwrap() error {
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}

// ResolverPanicError is stored as the entry error when the resolver panics.
type ResolverPanicError struct {
	Panic any
}

func (e *ResolverPanicError) Error() string {
	return fmt.Sprintf("cache: resolver panicked: %v", e.Panic)
}

// Unwrap exposes the panic value when it was an error.
func (e *ResolverPanicError) Unwrap() error {
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}
