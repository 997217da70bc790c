package alert

import "context"

// Provider receives terminal failure notifications from the relay pipeline.
type Provider interface {
	Notify(ctx context.Context, event string, fields map[string]any) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Notify(ctx context.Context, event string, fields map[string]any) error {
	return nil
}
