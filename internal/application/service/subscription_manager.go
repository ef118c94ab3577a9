package service

import (
	"context"
	"fmt"
	"sync"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"

	"github.com/rs/zerolog/log"
)

// SubscriptionManager tracks live-bar subscriptions by subscriber id and
// folds the transport's trades into bars for each of them.
type SubscriptionManager struct {
	transport port.StreamTransport

	// lifecycle orders registration with the transport Attach/Detach calls,
	// so a uid is never re-attached before its previous detach finished.
	lifecycle sync.Mutex

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	uid        string
	fullName   string
	resolution model.Resolution
	onRealtime func(model.Bar)

	mu     sync.Mutex
	last   *model.Bar
	closed bool
}

func NewSubscriptionManager(transport port.StreamTransport) *SubscriptionManager {
	return &SubscriptionManager{
		transport: transport,
		subs:      make(map[string]*subscription),
	}
}

// Subscribe registers uid for live bars of symbolInfo. lastBar, when not nil,
// is the baseline the stream continues from. An already active uid is rejected.
func (m *SubscriptionManager) Subscribe(
	ctx context.Context,
	symbolInfo model.SymbolInfo,
	resolution string,
	onRealtime func(model.Bar),
	uid string,
	onResetCacheNeeded func(),
	lastBar *model.Bar,
) error {
	res, err := model.ParseResolution(resolution)
	if err != nil {
		return err
	}
	sym, ok := model.ParseFullSymbol(symbolInfo.FullName)
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrMalformedSymbol, symbolInfo.FullName)
	}

	sub := &subscription{
		uid:        uid,
		fullName:   symbolInfo.FullName,
		resolution: res,
		onRealtime: onRealtime,
	}
	if lastBar != nil {
		b := *lastBar
		sub.last = &b
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if _, exists := m.subs[uid]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", model.ErrDuplicateSubscriber, uid)
	}
	m.subs[uid] = sub
	m.mu.Unlock()

	if onResetCacheNeeded == nil {
		onResetCacheNeeded = func() {}
	}
	if err := m.transport.Attach(ctx, uid, sym, sub.apply, onResetCacheNeeded); err != nil {
		m.mu.Lock()
		delete(m.subs, uid)
		m.mu.Unlock()
		return fmt.Errorf("attach %s: %w", uid, err)
	}

	log.Debug().
		Str("uid", uid).
		Str("symbol", symbolInfo.FullName).
		Str("resolution", res.Raw).
		Bool("baseline", lastBar != nil).
		Msg("subscribed")
	return nil
}

// Unsubscribe removes uid. Unknown ids are a no-op.
func (m *SubscriptionManager) Unsubscribe(uid string) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	sub, ok := m.subs[uid]
	if ok {
		delete(m.subs, uid)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()

	m.transport.Detach(uid)
	log.Debug().Str("uid", uid).Str("symbol", sub.fullName).Msg("unsubscribed")
}

// Active reports whether uid is registered.
func (m *SubscriptionManager) Active(uid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[uid]
	return ok
}

// Len returns the number of active subscriptions.
func (m *SubscriptionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// apply folds one trade into the running bar and emits it.
// The callback runs under the subscription lock so bars stay ordered.
func (s *subscription) apply(t model.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	bar, ok := model.ApplyTrade(s.last, t, s.resolution)
	if !ok {
		return
	}
	s.last = &bar
	s.onRealtime(bar)
}
