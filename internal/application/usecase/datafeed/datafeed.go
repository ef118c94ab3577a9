package datafeed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"chartfeed/internal/application/port"
	"chartfeed/internal/application/service"
	"chartfeed/internal/domain/model"

	"github.com/rs/zerolog/log"
)

type Deps struct {
	Config        model.DatafeedConfiguration
	Catalog       *service.SymbolCatalog
	Bars          *service.BarRepository
	LastBars      port.LastBarStore
	Subscriptions *service.SubscriptionManager
}

// Datafeed implements the chart adapter protocol. Results are delivered only
// through the callbacks; every method except OnReady invokes exactly one of
// its callbacks before returning.
type Datafeed struct {
	cfg      model.DatafeedConfiguration
	catalog  *service.SymbolCatalog
	bars     *service.BarRepository
	lastBars port.LastBarStore
	subs     *service.SubscriptionManager

	seq      atomic.Uint64
	tokensMu sync.Mutex
	tokens   map[string]uint64 // full_name|resolution -> latest in-flight token
}

func New(deps Deps) *Datafeed {
	return &Datafeed{
		cfg:      deps.Config,
		catalog:  deps.Catalog,
		bars:     deps.Bars,
		lastBars: deps.LastBars,
		subs:     deps.Subscriptions,
		tokens:   make(map[string]uint64),
	}
}

// Configuration returns the static configuration handed out by OnReady.
func (d *Datafeed) Configuration() model.DatafeedConfiguration {
	return d.cfg
}

// OnReady delivers the configuration on a separate goroutine, never inline.
func (d *Datafeed) OnReady(callback ReadyCallback) {
	log.Debug().Msg("[onReady]: Method call")
	cfg := d.cfg
	go callback(cfg)
}

func (d *Datafeed) SearchSymbols(ctx context.Context, userInput, exchange, symbolType string, onResult SearchCallback) {
	log.Debug().Str("input", userInput).Str("exchange", exchange).Str("type", symbolType).Msg("[searchSymbols]: Method call")

	symbols, err := d.catalog.Search(ctx, userInput, exchange, symbolType)
	if err != nil {
		log.Error().Err(err).Str("input", userInput).Msg("[searchSymbols]: catalog fetch failed")
		symbols = []model.SymbolDescriptor{}
	}
	onResult(symbols)
}

func (d *Datafeed) ResolveSymbol(ctx context.Context, symbolName string, onResolved ResolveCallback, onError ErrorCallback) {
	log.Debug().Str("symbol", symbolName).Msg("[resolveSymbol]: Method call")

	item, err := d.catalog.Resolve(ctx, symbolName)
	if err != nil {
		if errors.Is(err, model.ErrSymbolResolution) {
			log.Info().Str("symbol", symbolName).Msg("[resolveSymbol]: Cannot resolve symbol")
			onError(ReasonCannotResolve)
			return
		}
		log.Error().Err(err).Str("symbol", symbolName).Msg("[resolveSymbol]: catalog fetch failed")
		onError(err.Error())
		return
	}

	log.Debug().Str("symbol", symbolName).Msg("[resolveSymbol]: Symbol resolved")
	onResolved(d.symbolInfo(item))
}

func (d *Datafeed) symbolInfo(item model.SymbolDescriptor) model.SymbolInfo {
	resolutions := make([]string, len(d.cfg.SupportedResolutions))
	copy(resolutions, d.cfg.SupportedResolutions)
	return model.SymbolInfo{
		Name:                 item.Symbol,
		FullName:             item.FullName,
		Ticker:               item.FullName,
		Description:          item.Description,
		Type:                 item.Type,
		Session:              "24x7",
		Timezone:             "Etc/UTC",
		Exchange:             item.Exchange,
		MinMov:               1,
		PriceScale:           100,
		HasIntraday:          true,
		HasNoVolume:          true,
		HasWeeklyAndMonthly:  false,
		SupportedResolutions: resolutions,
		VolumePrecision:      2,
		DataStatus:           "streaming",
	}
}

// GetBars loads history for [from, to). On a first data request the last bar
// is cached before onHistory fires, so a following SubscribeBars sees it.
// A result superseded by a newer request for the same symbol and resolution
// within the same scope (see WithScope) is dropped and reported as stale.
func (d *Datafeed) GetBars(
	ctx context.Context,
	symbolInfo model.SymbolInfo,
	resolution string,
	from, to int64,
	onHistory HistoryCallback,
	onError ErrorCallback,
	firstDataRequest bool,
) {
	log.Debug().
		Str("symbol", symbolInfo.FullName).
		Str("resolution", resolution).
		Int64("from", from).
		Int64("to", to).
		Bool("first", firstDataRequest).
		Msg("[getBars]: Method call")

	key := scopeFrom(ctx) + "|" + symbolInfo.FullName + "|" + resolution
	token := d.issueToken(key)

	bars, err := d.bars.GetBars(ctx, symbolInfo, from, to)
	if err != nil {
		d.finishToken(key, token)
		if errors.Is(err, model.ErrMalformedSymbol) {
			log.Error().Err(err).Msg("[getBars]: symbolInfo was not resolved")
		} else {
			log.Warn().Err(err).Str("symbol", symbolInfo.FullName).Msg("[getBars]: Get error")
		}
		onError(err.Error())
		return
	}

	if !d.finishToken(key, token) {
		log.Debug().Str("symbol", symbolInfo.FullName).Uint64("token", token).Msg("[getBars]: dropping stale result")
		onError(model.ErrStaleRequest.Error())
		return
	}

	if firstDataRequest && len(bars) > 0 {
		if err := d.lastBars.Set(ctx, symbolInfo.FullName, bars[len(bars)-1]); err != nil {
			log.Warn().Err(err).Str("symbol", symbolInfo.FullName).Msg("[getBars]: last bar cache write failed")
		}
	}

	log.Debug().Str("symbol", symbolInfo.FullName).Int("bars", len(bars)).Msg("[getBars]: returned bars")
	onHistory(bars, model.HistoryMeta{NoData: len(bars) == 0})
}

// SubscribeBars starts live bars for uid, continuing from the cached last bar.
// A uid that is already active is rejected.
func (d *Datafeed) SubscribeBars(
	ctx context.Context,
	symbolInfo model.SymbolInfo,
	resolution string,
	onRealtime RealtimeCallback,
	uid string,
	onResetCacheNeeded ResetCacheCallback,
) error {
	log.Debug().Str("uid", uid).Str("symbol", symbolInfo.FullName).Msg("[subscribeBars]: Method call")

	var lastBar *model.Bar
	bar, ok, err := d.lastBars.Get(ctx, symbolInfo.FullName)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("symbol", symbolInfo.FullName).Msg("[subscribeBars]: last bar lookup failed")
	case ok:
		lastBar = &bar
	}

	err = d.subs.Subscribe(ctx, symbolInfo, resolution, onRealtime, uid, onResetCacheNeeded, lastBar)
	if err != nil {
		log.Error().Err(err).Str("uid", uid).Msg("[subscribeBars]: subscribe failed")
		return err
	}
	return nil
}

func (d *Datafeed) UnsubscribeBars(uid string) {
	log.Debug().Str("uid", uid).Msg("[unsubscribeBars]: Method call")
	d.subs.Unsubscribe(uid)
}

func (d *Datafeed) issueToken(key string) uint64 {
	token := d.seq.Add(1)
	d.tokensMu.Lock()
	d.tokens[key] = token
	d.tokensMu.Unlock()
	return token
}

// finishToken reports whether token is still the latest for key and, if so, releases it.
func (d *Datafeed) finishToken(key string, token uint64) bool {
	d.tokensMu.Lock()
	defer d.tokensMu.Unlock()
	cur, ok := d.tokens[key]
	if !ok || cur != token {
		return false
	}
	delete(d.tokens, key)
	return true
}
