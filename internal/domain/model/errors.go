package model

import "errors"

var (
	// ErrDataSource is a transport or decode failure of the aggregator or bars source.
	ErrDataSource = errors.New("data source error")
	// ErrSymbolResolution means no catalog entry matched.
	ErrSymbolResolution = errors.New("cannot resolve symbol")
	// ErrMalformedSymbol means a full name did not parse as EXCHANGE:FROM/TO.
	ErrMalformedSymbol = errors.New("malformed symbol")
	// ErrDuplicateSubscriber is returned when a subscriber id is already active.
	ErrDuplicateSubscriber = errors.New("duplicate subscriber id")
	// ErrStaleRequest marks a history result superseded by a newer request.
	ErrStaleRequest = errors.New("stale request")
	// ErrUnknownResolution is returned for resolutions ParseResolution rejects.
	ErrUnknownResolution = errors.New("unknown resolution")
)
