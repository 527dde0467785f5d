// Package api serves the popcorn HTTP API: subscriptions, feeds and shows.
//
// Reads and subscription changes go straight to the store. Ingesting a scanned
// show goes through the worker so the fan-out is retried there.
package api

import (
	"go.uber.org/fx"
)

var Module = fx.Module("api",
	fx.Provide(
		NewServer,
	),
)
