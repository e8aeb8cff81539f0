package lifecycle

import (
	"context"
	"errors"
	"fmt"
)

// HealthStatus represents the health of a component.
type HealthStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`
}

// ManagedResource is a component with a start/stop lifecycle and a health probe.
type ManagedResource interface {
	// Start initializes and starts the component. It should be idempotent.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component, releasing any resources. It should be idempotent.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) HealthStatus
}

// Named pairs a resource with the name used in logs and health reports.
type Named struct {
	Name     string
	Resource ManagedResource
}

// Group starts resources in order and stops them in reverse.
type Group struct {
	resources []Named
	started   int
}

func NewGroup(resources ...Named) *Group {
	return &Group{resources: resources}
}

func (g *Group) Add(name string, r ManagedResource) {
	g.resources = append(g.resources, Named{Name: name, Resource: r})
}

// Start starts every resource. On failure the ones already started are stopped again.
func (g *Group) Start(ctx context.Context) error {
	for i, r := range g.resources {
		if err := r.Resource.Start(ctx); err != nil {
			g.started = i
			stopErr := g.Stop(ctx)
			return errors.Join(fmt.Errorf("failed to start %s: %w", r.Name, err), stopErr)
		}
	}
	g.started = len(g.resources)
	return nil
}

func (g *Group) Stop(ctx context.Context) error {
	var errs []error
	for i := g.started - 1; i >= 0; i-- {
		r := g.resources[i]
		if err := r.Resource.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", r.Name, err))
		}
	}
	g.started = 0
	return errors.Join(errs...)
}

// Health reports per-resource status; the group is ready only if all members are.
func (g *Group) Health(ctx context.Context) (bool, map[string]HealthStatus) {
	ready := true
	out := make(map[string]HealthStatus, len(g.resources))
	for _, r := range g.resources {
		h := r.Resource.Health(ctx)
		out[r.Name] = h
		ready = ready && h.Ready
	}
	return ready, out
}
