package payment

import (
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/payment/repository"
	"github.com/smallbiznis/payrelay/internal/payment/service"
	"github.com/smallbiznis/payrelay/internal/paystack"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		ProvidePaystackClient,
		service.NewService,
	),
)

func ProvidePaystackClient(cfg config.Config, log *zap.Logger) *paystack.Client {
	return paystack.NewClient(paystack.Config{
		BaseURL:   cfg.PaystackBaseURL,
		SecretKey: cfg.PaystackSecretKey,
		Timeout:   cfg.PaystackTimeout,
	}, log)
}
