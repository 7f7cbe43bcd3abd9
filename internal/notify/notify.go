// Package notify delivers completed summaries to the configured chat
// channels and moves items from completed to sent.
package notify

import (
	"context"

	"storyfeed/internal/store"
	"storyfeed/internal/summarize"
)

// Channel delivers one summarized story to a destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, item store.Item, summary summarize.Summary) error
}
