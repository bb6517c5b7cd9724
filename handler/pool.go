package handler

import (
	"fmt"
	"sync"

	"github.com/the-line/loyaltysync"
)

// Factory constructs a fresh Handler instance.
type Factory func() Handler

// Pool maps request type codes to handler factories. Registration is
// validated eagerly so misconfiguration fails at startup, not at
// resolution time. Safe for concurrent use.
type Pool struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewPool creates an empty handler pool.
func NewPool() *Pool {
	return &Pool{factories: make(map[string]Factory)}
}

// Register binds a type code to a handler factory. It fails on an empty
// code, a nil factory, or a duplicate registration.
func (p *Pool) Register(typeCode string, factory Factory) error {
	if typeCode == "" {
		return fmt.Errorf("handler: register: empty type code")
	}
	if factory == nil {
		return fmt.Errorf("handler: register %q: nil factory", typeCode)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.factories[typeCode]; exists {
		return fmt.Errorf("handler: register %q: %w", typeCode, loyaltysync.ErrDuplicateType)
	}
	p.factories[typeCode] = factory
	return nil
}

// MustRegister is like Register but panics on error. Use during startup
// wiring where a failure is a programming error.
func (p *Pool) MustRegister(typeCode string, factory Factory) {
	if err := p.Register(typeCode, factory); err != nil {
		panic(err)
	}
}

// Resolve returns a freshly constructed handler for the type code.
// Returns loyaltysync.ErrUnknownRequestType when no variant is
// registered; the digest treats that as permanent and non-retryable.
func (p *Pool) Resolve(typeCode string) (Handler, error) {
	p.mu.RLock()
	factory, ok := p.factories[typeCode]
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("handler: resolve %q: %w", typeCode, loyaltysync.ErrUnknownRequestType)
	}
	return factory(), nil
}

// Types returns all registered type codes.
func (p *Pool) Types() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	types := make([]string, 0, len(p.factories))
	for code := range p.factories {
		types = append(types, code)
	}
	return types
}
