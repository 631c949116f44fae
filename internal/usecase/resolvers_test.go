package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"message-relay/internal/domain"
)

func TestUserResolver_FirstMatch(t *testing.T) {
	dir := &fakeDirectory{users: []domain.UserIdentity{{UserID: "42", DisplayName: "Asha"}, {UserID: "43"}}}
	logger, logs := newTestLogger()
	r, err := NewUserResolver(dir, logger)
	require.NoError(t, err)

	u, err := r.Resolve(context.Background(), "7229091491")
	require.NoError(t, err)
	require.Equal(t, domain.ID("42"), u.UserID)
	require.Equal(t, []string{"7229091491"}, dir.calls)
	require.Contains(t, logs.String(), "multiple directory matches")
}

func TestUserResolver_NotFoundAndUpstream(t *testing.T) {
	r, err := NewUserResolver(&fakeDirectory{}, nil)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "0")
	require.Equal(t, ErrorNotFound, CodeOf(err))

	r, err = NewUserResolver(&fakeDirectory{err: errors.New("502")}, nil)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "0")
	require.Equal(t, ErrorUpstream, CodeOf(err))
	require.ErrorContains(t, err, "502")

	_, err = NewUserResolver(nil, nil)
	require.Error(t, err)
}

func TestConversationResolver_UsesExisting(t *testing.T) {
	svc := &fakeConversations{existing: []domain.Conversation{{ID: "7"}, {ID: "8"}}}
	r, err := NewConversationResolver(svc, "", "", nil)
	require.NoError(t, err)

	conv, err := r.Resolve(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, domain.ID("7"), conv.ID)
	require.Empty(t, svc.creates)
}

func TestConversationResolver_CreatesWhenAbsent(t *testing.T) {
	svc := &fakeConversations{created: domain.Conversation{ID: "9"}}
	r, err := NewConversationResolver(svc, "", "", nil)
	require.NoError(t, err)

	conv, err := r.Resolve(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, domain.ID("9"), conv.ID)
	require.Equal(t, []domain.ID{"42"}, svc.creates)
	require.Equal(t, "database", svc.lastAgent)
	require.Equal(t, "WhatsApp Conversation", svc.lastTitle)
}

func TestConversationResolver_Errors(t *testing.T) {
	r, err := NewConversationResolver(&fakeConversations{listErr: errors.New("down")}, "a", "t", nil)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "42")
	require.Equal(t, ErrorUpstream, CodeOf(err))

	svc := &fakeConversations{createErr: errors.New("conflict")}
	r, err = NewConversationResolver(svc, "a", "t", nil)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "42")
	require.ErrorContains(t, err, "conversation_create_error")

	_, err = NewConversationResolver(nil, "", "", nil)
	require.Error(t, err)
}

func TestConversationResolver_ConcurrentSameUserCreatesOnce(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeConversations{created: domain.Conversation{ID: "9"}, listGate: gate}
	r, err := NewConversationResolver(svc, "", "", nil)
	require.NoError(t, err)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]domain.Conversation, callers)
	errs := make([]error, callers)
	started := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			results[i], errs[i] = r.Resolve(context.Background(), "42")
		}(i)
	}
	for i := 0; i < callers; i++ {
		<-started
	}
	close(gate)
	wg.Wait()

	require.Len(t, svc.creates, 1)
	for i, c := range results {
		require.NoError(t, errs[i])
		require.Equal(t, domain.ID("9"), c.ID)
	}
}

func TestRecorder_BuildsPersistedMessage(t *testing.T) {
	store := &fakeStore{nextID: "m-9"}
	rec, err := NewRecorder(store)
	require.NoError(t, err)

	id, err := rec.Record(context.Background(),
		domain.InboundMessage{ChannelMessageID: "WA1", From: "917229091491@c.us", Body: "hi"},
		domain.UserIdentity{UserID: "42"},
		domain.Conversation{ID: "7"},
	)
	require.NoError(t, err)
	require.Equal(t, "m-9", id)
	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	require.Equal(t, "WA1", saved.WhatsAppID)
	require.Equal(t, "917229091491@c.us", saved.FromNumber)
	require.False(t, saved.IsFromMe)
	require.Equal(t, domain.ID("42"), saved.UserID)
	require.Equal(t, domain.ID("7"), saved.ConversationID)
}

func TestRecorder_Errors(t *testing.T) {
	rec, err := NewRecorder(&fakeStore{saveErr: domain.ErrDuplicate})
	require.NoError(t, err)
	_, err = rec.Record(context.Background(), domain.InboundMessage{}, domain.UserIdentity{}, domain.Conversation{})
	require.Equal(t, ErrorDuplicate, CodeOf(err))

	rec, err = NewRecorder(&fakeStore{saveErr: errors.New("throttled")})
	require.NoError(t, err)
	_, err = rec.Record(context.Background(), domain.InboundMessage{}, domain.UserIdentity{}, domain.Conversation{})
	require.Equal(t, ErrorInternal, CodeOf(err))

	_, err = NewRecorder(nil)
	require.Error(t, err)
}

func TestReplyTrigger_ExactGreetingOnly(t *testing.T) {
	for _, body := range []string{"hi", "Hi", "HI", "hI"} {
		sender := &fakeSender{}
		rt, err := NewReplyTrigger(sender, nil)
		require.NoError(t, err)
		rt.MaybeReply(context.Background(), domain.InboundMessage{From: "a@c.us", Body: body}, domain.UserIdentity{DisplayName: "Asha"})
		require.Equal(t, []sent{{to: "a@c.us", text: "Hello Asha!"}}, sender.sent, "body=%q", body)
	}
	for _, body := range []string{"hi there", " hi", "hello", ""} {
		sender := &fakeSender{}
		rt, err := NewReplyTrigger(sender, nil)
		require.NoError(t, err)
		rt.MaybeReply(context.Background(), domain.InboundMessage{From: "a@c.us", Body: body}, domain.UserIdentity{DisplayName: "Asha"})
		require.Empty(t, sender.sent, "body=%q", body)
	}
}

func TestReplyTrigger_PlaceholderAndSendFailure(t *testing.T) {
	logger, logs := newTestLogger()
	sender := &fakeSender{err: errors.New("gateway offline")}
	rt, err := NewReplyTrigger(sender, logger)
	require.NoError(t, err)

	rt.MaybeReply(context.Background(), domain.InboundMessage{From: "a@c.us", Body: "hi"}, domain.UserIdentity{})
	require.Equal(t, "Hello there!", sender.sent[0].text)
	require.Contains(t, logs.String(), "gateway offline")

	_, err = NewReplyTrigger(nil, nil)
	require.Error(t, err)
}
