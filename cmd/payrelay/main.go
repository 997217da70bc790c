package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/migration"
	"github.com/smallbiznis/payrelay/internal/observability"
	"github.com/smallbiznis/payrelay/internal/payment"
	"github.com/smallbiznis/payrelay/internal/providers/alert"
	"github.com/smallbiznis/payrelay/internal/ratelimit"
	"github.com/smallbiznis/payrelay/internal/relay"
	"github.com/smallbiznis/payrelay/internal/server"
	"github.com/smallbiznis/payrelay/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		alert.Module,
		ratelimit.Module,
		payment.Module,
		relay.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
