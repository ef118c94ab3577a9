package cryptocompare

import "chartfeed/internal/infrastructure/streamfeed"

// ProviderName registers the streaming client under this name.
const ProviderName = "cryptocompare"

func init() {
	streamfeed.Register(ProviderName, func(opts streamfeed.Options) streamfeed.Feed {
		return NewStreamClient(opts.WsURL, opts.APIKey)
	})
}
