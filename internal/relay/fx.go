package relay

import (
	"context"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/nexus"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("relay",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideNexusClient),
	fx.Provide(NewService),
	fx.Provide(func(s *Service) paymentdomain.Relay { return s }),
	fx.Provide(NewWorker),
	fx.Invoke(StartWorker),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Mode:           cfg.RelayMode,
		MaxAttempts:    cfg.RelayMaxAttempts,
		MaxFaults:      cfg.RelayMaxFaults,
		AttemptTimeout: cfg.RelayAttemptTimeout,
		RetryDelay:     cfg.RelayRetryDelay,
		PollInterval:   cfg.RelayPollInterval,
		BatchSize:      cfg.RelayBatchSize,
	}
}

func ProvideNexusClient(cfg config.Config, log *zap.Logger) *nexus.Client {
	return nexus.NewClient(nexusConfig(cfg), log)
}

// nexusConfig aligns the client timeout with the per-attempt deadline so a
// slow peer is cut by the attempt budget, not by the transport.
func nexusConfig(cfg config.Config) nexus.Config {
	return nexus.Config{
		BaseURL:  cfg.NexusBaseURL,
		Username: cfg.NexusUsername,
		Password: cfg.NexusPassword,
		Timeout:  cfg.RelayAttemptTimeout,
	}
}

// StartWorker runs the queue drainer under the app lifecycle in queue mode.
func StartWorker(lc fx.Lifecycle, cfg config.Config, worker *Worker) {
	if cfg.RelayMode != config.RelayModeQueue {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go worker.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
