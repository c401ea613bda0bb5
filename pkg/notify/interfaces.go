package notify

import "context"

// Notifier sends run-outcome events to a downstream sink (webhook, SNS, SQS, Pub/Sub).
type Notifier interface {
	ID() string
	Type() string
	Send(ctx context.Context, evt Event) error
}
