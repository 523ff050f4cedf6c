package httprpc

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Service groups the method declarations of one remote service. Descriptors are validated
// when declared and cached by method name.
type Service struct {
	name    string
	headers map[string]string

	mu      sync.RWMutex
	methods map[string]*MethodDescriptor
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithServiceHeaders sets static headers sent by every method of the service. Method level
// headers with the same name take precedence.
func WithServiceHeaders(headers map[string]string) ServiceOption {
	return func(s *Service) {
		maps.Copy(s.headers, headers)
	}
}

// NewService creates an empty service.
func NewService(name string, opts ...ServiceOption) *Service {
	s := &Service{
		name:    name,
		headers: make(map[string]string),
		methods: make(map[string]*MethodDescriptor),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.name
}

// Declare validates m and registers its descriptor under m.Name.
func (s *Service) Declare(m Method) (*MethodDescriptor, error) {
	d, err := describe(s.name, s.headers, m)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.methods[d.name]; exists {
		return nil, ErrConfiguration.Msg(fmt.Sprintf("method %q is already declared on service %q", d.name, s.name))
	}
	s.methods[d.name] = d
	return d, nil
}

// MustDeclare is like Declare but panics on error.
func (s *Service) MustDeclare(m Method) *MethodDescriptor {
	d, err := s.Declare(m)
	if err != nil {
		panic(err)
	}
	return d
}

// Lookup returns the descriptor declared under name.
func (s *Service) Lookup(name string) (*MethodDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.methods[name]
	return d, ok
}

// Methods returns the declared descriptors sorted by name.
func (s *Service) Methods() []*MethodDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := slices.Sorted(maps.Keys(s.methods))
	out := make([]*MethodDescriptor, 0, len(names))
	for _, n := range names {
		out = append(out, s.methods[n])
	}
	return out
}
