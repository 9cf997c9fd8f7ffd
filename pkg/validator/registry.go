// Package validator provides a pluggable validator registry for field validation
package validator

import (
	"fmt"
	"sync"
)

// ValidatorFunc is the signature for validator functions
// Takes a value and optional configuration, returns an error if validation fails
type ValidatorFunc func(value interface{}, config map[string]interface{}) error

// Registry holds registered validators
type Registry struct {
	validators map[string]ValidatorFunc
	mu         sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// GetRegistry returns the singleton validator registry
func GetRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = &Registry{
			validators: make(map[string]ValidatorFunc),
		}
		defaultRegistry.registerBuiltins()
		defaultRegistry.registerFieldTypes()
	})
	return defaultRegistry
}

// Register adds a validator to the registry
func (r *Registry) Register(name string, fn ValidatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = fn
}

// Get returns a validator by name
func (r *Registry) Get(name string) (ValidatorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.validators[name]
	return fn, ok
}

// Validate runs a named validator
func (r *Registry) Validate(name string, value interface{}, config map[string]interface{}) error {
	fn, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("validator '%s' not found", name)
	}
	return fn(value, config)
}

// registerBuiltins registers the contact-data validators
func (r *Registry) registerBuiltins() {
	r.Register("email", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok || str == "" {
			return nil // Empty values handled by required check
		}
		if !IsValidEmail(str) {
			return fmt.Errorf("Email inválido")
		}
		return nil
	})

	// Phone digits, bounds from config (defaults to Brazilian 10-11)
	r.Register("phone", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok || str == "" {
			return nil
		}
		min, max := 10, 11
		if v, ok := config["min"].(int); ok {
			min = v
		}
		if v, ok := config["max"].(int); ok {
			max = v
		}
		if !PhoneDigitsBetween(str, min, max) {
			return fmt.Errorf("Telefone deve ter entre %d e %d dígitos", min, max)
		}
		return nil
	})

	r.Register("cpf", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok || str == "" {
			return nil
		}
		return ValidateCPF(str)
	})

	// Length validator, counted in characters
	r.Register("length", func(value interface{}, config map[string]interface{}) error {
		str, ok := value.(string)
		if !ok {
			return nil
		}
		length := len([]rune(str))
		if min, ok := config["min"].(int); ok && length < min {
			return fmt.Errorf("deve ter pelo menos %d caracteres", min)
		}
		if max, ok := config["max"].(int); ok && length > max {
			return fmt.Errorf("deve ter no máximo %d caracteres", max)
		}
		return nil
	})
}

// Package-level convenience functions

// Register adds a validator to the default registry
func Register(name string, fn ValidatorFunc) {
	GetRegistry().Register(name, fn)
}

// Validate runs a named validator using the default registry
func Validate(name string, value interface{}, config map[string]interface{}) error {
	return GetRegistry().Validate(name, value, config)
}
