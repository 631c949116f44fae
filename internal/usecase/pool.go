package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"message-relay/internal/domain"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("usecase: worker pool closed")

// Handler processes a single inbound message.
type Handler interface {
	Handle(ctx context.Context, msg domain.InboundMessage) Result
}

// WorkerPool runs inbound events in the background with bounded concurrency.
// Submit blocks while all workers are busy.
type WorkerPool struct {
	handler Handler
	log     *slog.Logger
	group   errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc

	// mu orders Submit's closed check and group.Go against Close.
	mu     sync.RWMutex
	closed bool
}

func NewWorkerPool(handler Handler, workers int, logger *slog.Logger) (*WorkerPool, error) {
	if handler == nil {
		return nil, errors.New("usecase: handler must not be nil")
	}
	if workers <= 0 {
		return nil, errors.New("usecase: workers must be positive")
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{handler: handler, log: loggerOrDefault(logger), ctx: ctx, cancel: cancel}
	p.group.SetLimit(workers)
	return p, nil
}

// Submit schedules msg. Errors inside the task are logged, never returned.
func (p *WorkerPool) Submit(msg domain.InboundMessage) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.group.Go(func() error {
		res := p.handler.Handle(p.ctx, msg)
		p.log.Debug("inbound event done", "whatsapp_id", msg.ChannelMessageID, "status", string(res.Status))
		return nil
	})
	return nil
}

// Close stops accepting events and waits for in-flight ones. If ctx expires
// first, running events are cancelled and ctx's error is returned.
func (p *WorkerPool) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		// Lock waits for Submits already inside group.Go; cancelling on
		// timeout frees their slots.
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		_ = p.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
