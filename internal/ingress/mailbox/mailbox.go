package mailbox

import (
	"context"

	"cvintake/internal/notify/models"
)

// Mailbox retains the most recent webhook completions for pollers to
// consume. It is a bounded queue with FIFO eviction: once capacity is
// reached, appending drops the oldest entry. All access goes through this
// contract; nothing reaches the retained list directly.
type Mailbox interface {
	Append(ctx context.Context, n models.Notification) error
	List(ctx context.Context) ([]models.Notification, error)
	Reset(ctx context.Context) error
}
