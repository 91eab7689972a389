package connectors

import (
	"context"

	"quoteflow/internal"
)

// MailConnector lists unread messages without changing their read state.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
