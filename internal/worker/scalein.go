package worker

import "context"

// ScaleInProtector enables/disables container-runtime scale-in protection
// around one mandate's execution. The runtime call is best-effort: an
// absent or erroring protector must not block the worker loop.
type ScaleInProtector interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// NoopProtector is used when no container-runtime integration is configured;
// enabling and disabling both trivially succeed so the worker loop proceeds
// unconditionally.
type NoopProtector struct{}

func (NoopProtector) Enable(context.Context) error  { return nil }
func (NoopProtector) Disable(context.Context) error { return nil }
