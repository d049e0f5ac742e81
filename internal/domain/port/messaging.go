package port

import "context"

type EventPublisher interface {
	PublishEvent(ctx context.Context, msg []byte) error
}
