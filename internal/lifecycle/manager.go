// Package lifecycle starts components in dependency order and stops them in
// reverse.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moolen/mergetrace/internal/logging"
)

// Manager orchestrates the lifecycle of components with dependency awareness.
// Dependencies start before their dependents and stop after them.
type Manager struct {
	mu              sync.Mutex
	components      []Component
	dependencies    map[Component][]Component
	started         []Component
	shutdownTimeout time.Duration
	logger          *logging.Logger
}

// NewManager creates a manager with a 30 second per-component shutdown timeout.
func NewManager() *Manager {
	return &Manager{
		dependencies:    make(map[Component][]Component),
		shutdownTimeout: 30 * time.Second,
		logger:          logging.GetLogger("lifecycle"),
	}
}

// Register adds component. Its dependencies must already be registered,
// which also rules out cycles.
func (m *Manager) Register(component Component, dependsOn ...Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if component == nil {
		return fmt.Errorf("cannot register nil component")
	}
	if component.Name() == "" {
		return fmt.Errorf("component must have a non-empty name")
	}
	if m.registered(component) {
		return fmt.Errorf("component %s is already registered", component.Name())
	}
	for _, dep := range dependsOn {
		if !m.registered(dep) {
			return fmt.Errorf("dependency %s of %s is not registered", dep.Name(), component.Name())
		}
	}

	m.components = append(m.components, component)
	m.dependencies[component] = dependsOn
	m.logger.Debug("Registered component %s with %d dependencies", component.Name(), len(dependsOn))
	return nil
}

func (m *Manager) registered(c Component) bool {
	for _, r := range m.components {
		if r == c {
			return true
		}
	}
	return false
}

// Start starts every component in dependency order. When one fails, the
// components already started are stopped again in reverse order.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = nil
	for _, component := range m.startOrder() {
		begin := time.Now()
		if err := component.Start(ctx); err != nil {
			m.logger.Error("Failed to start %s: %v", component.Name(), err)
			m.stopStarted(context.Background())
			return fmt.Errorf("initialization failed for %s: %w", component.Name(), err)
		}
		m.started = append(m.started, component)
		m.logger.Debug("%s started (took %dms)", component.Name(), time.Since(begin).Milliseconds())
	}
	return nil
}

// startOrder sorts components so that dependencies come first; ties keep
// registration order.
func (m *Manager) startOrder() []Component {
	visited := make(map[Component]bool)
	var sorted []Component
	var visit func(c Component)
	visit = func(c Component) {
		if visited[c] {
			return
		}
		visited[c] = true
		for _, dep := range m.dependencies[c] {
			visit(dep)
		}
		sorted = append(sorted, c)
	}
	for _, c := range m.components {
		visit(c)
	}
	return sorted
}

// Stop stops the started components in reverse start order, each with its
// own shutdown timeout. Errors are logged and joined.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopStarted(ctx)
}

func (m *Manager) stopStarted(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		componentCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
		err := component.Stop(componentCtx)
		cancel()
		if err != nil {
			m.logger.Warn("Error stopping %s: %v", component.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", component.Name(), err))
			continue
		}
		m.logger.Debug("%s stopped", component.Name())
	}
	m.started = nil
	return errors.Join(errs...)
}

// SetShutdownTimeout sets the grace period applied to each component.
func (m *Manager) SetShutdownTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = timeout
}
