package lifecycle

import "context"

// Component is a long-running part of the process managed by Manager.
type Component interface {
	// Start brings the component up. It must return once the component is
	// ready, not when it finishes.
	Start(ctx context.Context) error

	// Stop shuts the component down within the deadline of ctx.
	Stop(ctx context.Context) error

	// Name is used in logs and errors and must not be empty.
	Name() string
}
