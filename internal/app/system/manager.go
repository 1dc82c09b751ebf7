package system

import (
	"context"
	"fmt"
	"sync"

	core "github.com/kingpin-stream/economy-core/internal/app/core/service"
)

// Manager orchestrates the lifecycle of registered services. Start runs
// registrations in order and rolls back (stops) everything already started
// if a later service fails; Stop runs in reverse order and is idempotent.
type Manager struct {
	mu       sync.Mutex
	services []Service
	started  []Service
	stopOnce sync.Once
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a service to the managed set. Safe to call before Start;
// registering after Start has no effect on already-running services.
func (m *Manager) Register(svc Service) error {
	if svc == nil {
		return fmt.Errorf("system: cannot register nil service")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.services {
		if existing.Name() == svc.Name() {
			return fmt.Errorf("system: service %q already registered", svc.Name())
		}
	}
	m.services = append(m.services, svc)
	return nil
}

// Start starts every registered service in registration order. If any
// service fails to start, previously-started services are stopped in
// reverse order before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	for _, svc := range services {
		if err := svc.Start(ctx); err != nil {
			m.rollback(ctx)
			return fmt.Errorf("system: start %q: %w", svc.Name(), err)
		}
		m.mu.Lock()
		m.started = append(m.started, svc)
		m.mu.Unlock()
	}
	return nil
}

func (m *Manager) rollback(ctx context.Context) {
	m.mu.Lock()
	started := append([]Service(nil), m.started...)
	m.started = nil
	m.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		_ = started[i].Stop(ctx)
	}
}

// Stop stops every started service in reverse order. It is idempotent: only
// the first call has effect.
func (m *Manager) Stop(ctx context.Context) error {
	var stopErr error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		started := append([]Service(nil), m.started...)
		m.started = nil
		m.mu.Unlock()

		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(ctx); err != nil && stopErr == nil {
				stopErr = fmt.Errorf("system: stop %q: %w", started[i].Name(), err)
			}
		}
	})
	return stopErr
}

// Descriptors returns descriptors for every registered service that also
// implements DescriptorProvider, sorted via CollectDescriptors.
func (m *Manager) Descriptors() []core.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()

	providers := make([]DescriptorProvider, 0, len(m.services))
	for _, svc := range m.services {
		if dp, ok := svc.(DescriptorProvider); ok {
			providers = append(providers, dp)
		}
	}
	return CollectDescriptors(providers)
}

// NoopService is a lifecycle no-op, useful for advertising a logical module
// that has no background work of its own.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                     { return n.ServiceName }
func (n NoopService) Start(ctx context.Context) error   { return nil }
func (n NoopService) Stop(ctx context.Context) error    { return nil }
