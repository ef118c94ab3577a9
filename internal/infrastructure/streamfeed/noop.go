package streamfeed

import (
	"context"

	"chartfeed/internal/domain/model"
)

// ProviderNone is used when streaming is disabled.
const ProviderNone = "none"

// Noop accepts subscriptions and never delivers anything.
type Noop struct{}

func (Noop) Name() string { return ProviderNone }

func (Noop) Attach(ctx context.Context, uid string, symbol model.SymbolIdentity, onTrade func(model.Trade), onReset func()) error {
	return nil
}

func (Noop) Detach(uid string) {}

func (Noop) Run(ctx context.Context) { <-ctx.Done() }

func init() {
	Register(ProviderNone, func(Options) Feed { return Noop{} })
}
