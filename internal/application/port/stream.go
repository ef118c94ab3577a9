package port

import (
	"context"

	"chartfeed/internal/domain/model"
)

// StreamTransport delivers live trades for a symbol to attached listeners.
type StreamTransport interface {
	// Attach registers uid for trades of symbol. onReset fires when the
	// transport lost data (e.g. after a reconnect) and history must be reloaded.
	Attach(ctx context.Context, uid string, symbol model.SymbolIdentity, onTrade func(model.Trade), onReset func()) error
	// Detach removes uid. Unknown ids are ignored.
	Detach(uid string)
}
