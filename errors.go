package sieve

import "fmt"

type EntityNotFoundError struct {
	Entity EID
}

func (e EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %d does not exist", e.Entity)
}

type InvalidHookArityError struct {
	Hook  HookType
	Terms int
}

func (e InvalidHookArityError) Error() string {
	return fmt.Sprintf("%s hook takes exactly one component, got %d", e.Hook, e.Terms)
}

type NullComponentError struct{}

func (e NullComponentError) Error() string {
	return "cannot register a nil component"
}

// InvalidComponentError is returned for values that can never act as a
// component token: query operators, hooks and non-comparable values.
type InvalidComponentError struct {
	Component any
}

func (e InvalidComponentError) Error() string {
	return fmt.Sprintf("value of type %T cannot be used as a component", e.Component)
}

type CacheKeyExistsError struct {
	Key string
}

func (e CacheKeyExistsError) Error() string {
	return fmt.Sprintf("cache key already registered: %q", e.Key)
}

type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

type StorageBindingError struct {
	Component any
}

func (e StorageBindingError) Error() string {
	return fmt.Sprintf("component %T is already bound to a storage", e.Component)
}
