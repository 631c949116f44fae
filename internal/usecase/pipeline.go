package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"message-relay/internal/domain"
)

type Status string

const (
	StatusProcessed     Status = "processed"
	StatusUnknownSender Status = "unknown_sender"
	StatusDuplicate     Status = "duplicate"
	StatusFailed        Status = "failed"
)

// Result describes how one inbound event ended.
type Result struct {
	Status    Status
	MessageID string
	Err       error
}

// Pipeline runs one inbound event through normalization, user and
// conversation resolution, recording, then reply and webhook dispatch.
type Pipeline struct {
	users      *UserResolver
	convs      *ConversationResolver
	recorder   *Recorder
	dispatcher *Dispatcher
	replies    *ReplyTrigger
	log        *slog.Logger
}

func NewPipeline(users *UserResolver, convs *ConversationResolver, recorder *Recorder, dispatcher *Dispatcher, replies *ReplyTrigger, logger *slog.Logger) (*Pipeline, error) {
	switch {
	case users == nil:
		return nil, errors.New("usecase: user resolver must not be nil")
	case convs == nil:
		return nil, errors.New("usecase: conversation resolver must not be nil")
	case recorder == nil:
		return nil, errors.New("usecase: recorder must not be nil")
	case dispatcher == nil:
		return nil, errors.New("usecase: dispatcher must not be nil")
	case replies == nil:
		return nil, errors.New("usecase: reply trigger must not be nil")
	}
	return &Pipeline{
		users:      users,
		convs:      convs,
		recorder:   recorder,
		dispatcher: dispatcher,
		replies:    replies,
		log:        loggerOrDefault(logger),
	}, nil
}

// Handle processes msg to completion. It never panics past its boundary and
// reports the outcome instead of failing; callers only inspect the Result.
func (p *Pipeline) Handle(ctx context.Context, msg domain.InboundMessage) (res Result) {
	log := p.log.With("whatsapp_id", msg.ChannelMessageID, "from", msg.From)
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", "panic", r)
			res = Result{Status: StatusFailed, Err: newError(ErrorInternal, "panic", nil)}
		}
	}()

	mobile := Normalize(msg.From)

	user, err := p.users.Resolve(ctx, mobile)
	if err != nil {
		return p.abort(log, "resolve user", err)
	}

	conv, err := p.convs.Resolve(ctx, user.UserID)
	if err != nil {
		return p.abort(log, "resolve conversation", err)
	}

	messageID, err := p.recorder.Record(ctx, msg, user, conv)
	if err != nil {
		return p.abort(log, "record message", err)
	}
	log.Info("message recorded", "message_id", messageID, "user_id", user.UserID.String(), "conversation_id", conv.ID.String())

	var wg sync.WaitGroup
	wg.Go(guarded(log, "reply", func() { p.replies.MaybeReply(ctx, msg, user) }))
	wg.Go(guarded(log, "dispatch", func() { p.dispatcher.Dispatch(ctx, messageID) }))
	wg.Wait()

	return Result{Status: StatusProcessed, MessageID: messageID}
}

// guarded wraps fn so a panic is logged inside its own goroutine.
func guarded(log *slog.Logger, step string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("pipeline step panic", "step", step, "panic", r)
			}
		}()
		fn()
	}
}

func (p *Pipeline) abort(log *slog.Logger, step string, err error) Result {
	if expectedAbsence(err) {
		log.Warn("pipeline stopped", "step", step, "reason", err)
		if CodeOf(err) == ErrorDuplicate {
			return Result{Status: StatusDuplicate, Err: err}
		}
		return Result{Status: StatusUnknownSender, Err: err}
	}
	log.Error("pipeline failed", "step", step, "err", err)
	return Result{Status: StatusFailed, Err: err}
}
