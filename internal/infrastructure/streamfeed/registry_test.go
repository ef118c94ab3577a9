package streamfeed

import (
	"context"
	"testing"

	"chartfeed/internal/domain/model"
)

func TestRegistry(t *testing.T) {
	if _, ok := Get("missing"); ok {
		t.Error("expected no factory for unknown provider")
	}

	f, ok := Get(ProviderNone)
	if !ok {
		t.Fatal("noop provider must be registered")
	}
	feed := f(Options{})
	if feed.Name() != ProviderNone {
		t.Errorf("unexpected name %s", feed.Name())
	}
	if err := feed.Attach(context.Background(), "a", model.SymbolIdentity{}, func(model.Trade) {}, nil); err != nil {
		t.Errorf("noop attach failed: %v", err)
	}
	feed.Detach("a")

	Register("test", nil)
	if _, ok := Get("test"); ok {
		t.Error("nil factory must not be registered")
	}
}
