package events

import "context"

// Worker consumes mint events from a channel and forwards them to a sink. It
// backs dev mode, where there is no outbox or broker but indexer-facing
// behavior should still be observable.
type Worker struct {
	sink  Publisher
	inbox <-chan MintEvent
}

// NewWorker constructs a worker draining inbox into sink.
func NewWorker(sink Publisher, inbox <-chan MintEvent) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				return err
			}
		}
	}
}

// ChannelPublisher implements Publisher over a buffered channel for the
// worker to drain. Publish drops nothing: it blocks if the channel is full,
// and aborts with the context when the invocation is cancelled.
type ChannelPublisher struct {
	outbox chan<- MintEvent
}

// NewChannelPublisher wraps a channel as a Publisher.
func NewChannelPublisher(outbox chan<- MintEvent) *ChannelPublisher {
	return &ChannelPublisher{outbox: outbox}
}

func (p *ChannelPublisher) Publish(ctx context.Context, event MintEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.outbox <- event:
		return nil
	}
}
