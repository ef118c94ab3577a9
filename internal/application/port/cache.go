package port

import (
	"context"

	"chartfeed/internal/domain/model"
)

// LastBarStore keeps the most recent bar per full symbol name.
type LastBarStore interface {
	Set(ctx context.Context, fullName string, bar model.Bar) error
	// Get reports ok=false when nothing is stored for fullName.
	Get(ctx context.Context, fullName string) (bar model.Bar, ok bool, err error)
}
