package globals

import (
	"context"

	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/config"
)

type key struct{}

// Value is what every command needs once the root command has loaded the config.
type Value struct {
	Config config.Config
	Tel    telemetry.API
}

func Set(ctx context.Context, value *Value) context.Context {
	return context.WithValue(ctx, key{}, value)
}

func Get(ctx context.Context) *Value {
	return ctx.Value(key{}).(*Value)
}
