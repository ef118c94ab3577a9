package datafeed

import "chartfeed/internal/domain/model"

// Callbacks of the chart adapter protocol.
type (
	ReadyCallback      func(model.DatafeedConfiguration)
	SearchCallback     func([]model.SymbolDescriptor)
	ResolveCallback    func(model.SymbolInfo)
	ErrorCallback      func(reason string)
	HistoryCallback    func(bars []model.Bar, meta model.HistoryMeta)
	RealtimeCallback   func(model.Bar)
	ResetCacheCallback func()
)

// ReasonCannotResolve is passed to the resolve error callback for unknown symbols.
const ReasonCannotResolve = "cannot resolve symbol"
