package alert

import (
	"context"

	"go.uber.org/zap"
)

// LogProvider emits alerts through the structured logger.
type LogProvider struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *LogProvider {
	return &LogProvider{log: log.Named("alert")}
}

func (p *LogProvider) Notify(ctx context.Context, event string, fields map[string]any) error {
	_ = ctx
	zapFields := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	p.log.Error(event, zapFields...)
	return nil
}
