package connectors

import "tezbuild/internal"

// MailConnector fetches raw messages from a supplier-facing inbox.
type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.InboundMail, error)
}
