package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"message-relay/internal/domain"
)

type fakeDirectory struct {
	users []domain.UserIdentity
	err   error
	calls []string
}

func (f *fakeDirectory) FindByMobile(_ context.Context, mobile string) ([]domain.UserIdentity, error) {
	f.calls = append(f.calls, mobile)
	return f.users, f.err
}

type fakeConversations struct {
	mu        sync.Mutex
	existing  []domain.Conversation
	created   domain.Conversation
	listErr   error
	createErr error
	lists     int
	creates   []domain.ID
	lastAgent string
	lastTitle string
	listGate  chan struct{}
}

func (f *fakeConversations) List(_ context.Context, _ domain.ID, limit int) ([]domain.Conversation, error) {
	if f.listGate != nil {
		<-f.listGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if limit != 1 {
		return nil, fmt.Errorf("unexpected limit %d", limit)
	}
	return f.existing, f.listErr
}

func (f *fakeConversations) Create(_ context.Context, userID domain.ID, agent, title string) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, userID)
	f.lastAgent, f.lastTitle = agent, title
	if f.createErr == nil {
		f.existing = append(f.existing, f.created)
	}
	return f.created, f.createErr
}

type fakeStore struct {
	mu       sync.Mutex
	saved    []domain.PersistedMessage
	byID     map[string]domain.PersistedMessage
	saveErr  error
	getErr   error
	cfg      *domain.WebhookConfig
	cfgErr   error
	nextID   string
	cfgReads int
}

func (f *fakeStore) SaveMessage(_ context.Context, msg domain.PersistedMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	id := f.nextID
	if id == "" {
		id = fmt.Sprintf("m-%d", len(f.saved)+1)
	}
	msg.MessageID = id
	f.saved = append(f.saved, msg)
	if f.byID == nil {
		f.byID = map[string]domain.PersistedMessage{}
	}
	f.byID[id] = msg
	return id, nil
}

func (f *fakeStore) GetMessage(_ context.Context, id string) (domain.PersistedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.PersistedMessage{}, f.getErr
	}
	msg, ok := f.byID[id]
	if !ok {
		return domain.PersistedMessage{}, domain.ErrNotFound
	}
	return msg, nil
}

func (f *fakeStore) GetActiveWebhookConfig(context.Context) (*domain.WebhookConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgReads++
	return f.cfg, f.cfgErr
}

type postCall struct {
	url       string
	body      []byte
	signature string
}

type fakePoster struct {
	mu       sync.Mutex
	calls    []postCall
	failures int // number of leading attempts that fail; -1 fails all
}

func (f *fakePoster) Post(_ context.Context, url string, body []byte, signature string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, postCall{url: url, body: body, signature: signature})
	if f.failures < 0 || len(f.calls) <= f.failures {
		return fmt.Errorf("attempt %d refused", len(f.calls))
	}
	return nil
}

type sent struct{ to, text string }

type fakeSender struct {
	mu     sync.Mutex
	sent   []sent
	err    error
	panics bool
}

func (f *fakeSender) SendMessage(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, text: text})
	if f.panics {
		panic("channel session lost")
	}
	return f.err
}

// logBuffer is a concurrency-safe sink for slog text output.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
