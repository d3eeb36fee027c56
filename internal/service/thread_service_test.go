package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fyp-inbox/internal/domain"
	"fyp-inbox/internal/realtime"
)

var (
	alice = domain.User{ID: "alice", DisplayName: "Alice", Roles: domain.RoleFlags{Student: true}}
	bob   = domain.User{ID: "bob", DisplayName: "Bob", Roles: domain.RoleFlags{Advisor: true}}
	carol = domain.User{ID: "carol", DisplayName: "Carol", Roles: domain.RoleFlags{Judge: true}}
)

func newTestThreadService(store *memStore, pub *recordingPublisher, limiter SendRateLimiter) *ThreadService {
	svc := NewThreadService(nil, store, store, newFakeDirectory(alice, bob, carol), ThreadOptions{
		Publisher:  pub,
		Limiter:    limiter,
		FetchLimit: 50,
	})
	clock := stepClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	svc.now = clock
	store.now = clock
	return svc
}

func TestStartOrContinue_CreatesThenReusesChat(t *testing.T) {
	store := newMemStore()
	svc := newTestThreadService(store, &recordingPublisher{}, nil)
	ctx := context.Background()

	first, err := svc.StartOrContinue(ctx, "alice", []string{"bob"}, "new", "hola")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	if !first.IsNewChat {
		t.Fatalf("expected new chat")
	}

	second, err := svc.StartOrContinue(ctx, "bob", []string{" alice ", "alice"}, "", "hola de nuevo")
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if second.IsNewChat {
		t.Fatalf("expected existing chat")
	}
	if first.Chat.ID != second.Chat.ID {
		t.Fatalf("expected same chat, got %s and %s", first.Chat.ID, second.Chat.ID)
	}
	if store.creates != 1 {
		t.Fatalf("expected one chat created, got %d", store.creates)
	}

	msgs, _ := store.ListByChatID(ctx, first.Chat.ID)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestStartOrContinue_ConcurrentStartsShareChat(t *testing.T) {
	store := newMemStore()
	svc := newTestThreadService(store, &recordingPublisher{}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			from, to := "alice", "bob"
			if i%2 == 1 {
				from, to = to, from
			}
			res, err := svc.StartOrContinue(ctx, from, []string{to}, "new", fmt.Sprintf("m%d", i))
			if err != nil {
				t.Errorf("send %d: %v", i, err)
				return
			}
			ids[i] = res.Chat.ID
		}()
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("expected a single chat, got %v", ids)
		}
	}
	if store.creates != 1 {
		t.Fatalf("expected one chat created, got %d", store.creates)
	}
}

func TestStartOrContinue_SenderSeesOwnMessage(t *testing.T) {
	store := newMemStore()
	svc := newTestThreadService(store, &recordingPublisher{}, nil)

	res, err := svc.StartOrContinue(context.Background(), "alice", []string{"bob", "carol"}, "new", "hola grupo")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(res.Message.SeenBy) != 1 || res.Message.SeenBy[0].UserID != "alice" {
		t.Fatalf("expected sender in seen_by, got %+v", res.Message.SeenBy)
	}
	if !res.Message.SeenBy[0].SeenAt.Equal(res.Message.CreatedAt) {
		t.Fatalf("expected seen_at == created_at")
	}
	if res.Chat.LastMessage == nil || res.Chat.LastMessage.SenderName != "Alice" {
		t.Fatalf("unexpected preview: %+v", res.Chat.LastMessage)
	}

	unread, err := svc.UnreadCount(context.Background(), res.Chat.ID, "alice")
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected sender unread 0, got %d", unread)
	}
	for _, id := range []string{"bob", "carol"} {
		n, _ := svc.UnreadCount(context.Background(), res.Chat.ID, id)
		if n != 1 {
			t.Fatalf("expected %s unread 1, got %d", id, n)
		}
	}
}

func TestStartOrContinue_Validation(t *testing.T) {
	svc := newTestThreadService(newMemStore(), &recordingPublisher{}, nil)
	ctx := context.Background()

	cases := []struct {
		name       string
		initiator  string
		recipients []string
		body       string
	}{
		{"empty body", "alice", []string{"bob"}, "   "},
		{"empty initiator", "", []string{"bob"}, "hola"},
		{"no recipients", "alice", nil, "hola"},
		{"only self", "alice", []string{"alice"}, "hola"},
	}
	for _, tc := range cases {
		if _, err := svc.StartOrContinue(ctx, tc.initiator, tc.recipients, "new", tc.body); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestStartOrContinue_UnknownRecipientAndChat(t *testing.T) {
	svc := newTestThreadService(newMemStore(), &recordingPublisher{}, nil)
	ctx := context.Background()

	if _, err := svc.StartOrContinue(ctx, "alice", []string{"ghost"}, "new", "hola"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
	if _, err := svc.StartOrContinue(ctx, "alice", nil, "missing-chat", "hola"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown chat, got %v", err)
	}
}

func TestStartOrContinue_ExplicitChatID(t *testing.T) {
	store := newMemStore()
	svc := newTestThreadService(store, &recordingPublisher{}, nil)
	ctx := context.Background()

	first, err := svc.StartOrContinue(ctx, "alice", []string{"bob"}, "new", "hola")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	again, err := svc.StartOrContinue(ctx, "bob", []string{"carol"}, first.Chat.ID, "respuesta")
	if err != nil {
		t.Fatalf("continue: %v", err)
	}
	if again.Chat.ID != first.Chat.ID || again.IsNewChat {
		t.Fatalf("expected continuation of %s, got %+v", first.Chat.ID, again)
	}
	if store.creates != 1 {
		t.Fatalf("recipients must be ignored with explicit chat id")
	}
}

func TestAppend_PublishesAfterCommit(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := newTestThreadService(store, pub, nil)
	ctx := context.Background()

	res, err := svc.StartOrContinue(ctx, "alice", []string{"bob"}, "new", "hola")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	events := pub.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].event != realtime.EventMessageAppended || events[1].event != realtime.EventThreadUpdated {
		t.Fatalf("unexpected event order: %s, %s", events[0].event, events[1].event)
	}
	if events[0].room != res.Chat.ID {
		t.Fatalf("expected room %s, got %s", res.Chat.ID, events[0].room)
	}
	payload, ok := events[0].payload.(MessageAppendedPayload)
	if !ok || payload.Message.ID != res.Message.ID {
		t.Fatalf("unexpected payload: %#v", events[0].payload)
	}

	store.appendErr = domain.ErrStoreUnavailable
	if _, err := svc.Append(ctx, res.Chat.ID, "bob", "falla"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if got := len(pub.snapshot()); got != 2 {
		t.Fatalf("expected no publish on failed append, got %d events", got)
	}
}

func TestAppend_PublishFailureDoesNotFailSend(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{err: errors.New("redis down")}
	svc := newTestThreadService(store, pub, nil)

	res, err := svc.StartOrContinue(context.Background(), "alice", []string{"bob"}, "new", "hola")
	if err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	msgs, _ := store.ListByChatID(context.Background(), res.Chat.ID)
	if len(msgs) != 1 {
		t.Fatalf("expected message persisted")
	}
}

func TestAppend_RequiresParticipant(t *testing.T) {
	store := newMemStore()
	svc := newTestThreadService(store, &recordingPublisher{}, nil)
	ctx := context.Background()

	res, err := svc.StartOrContinue(ctx, "alice", []string{"bob"}, "new", "hola")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Append(ctx, res.Chat.ID, "carol", "intruso"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.FetchMessages(ctx, res.Chat.ID, "carol", 10); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden on fetch, got %v", err)
	}
	ok, err := svc.CanJoin(ctx, res.Chat.ID, "carol")
	if err != nil || ok {
		t.Fatalf("expected carol denied, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.CanJoin(ctx, res.Chat.ID, "bob")
	if err != nil || !ok {
		t.Fatalf("expected bob allowed, got ok=%v err=%v", ok, err)
	}
}

func TestAppend_PreviewFollowsCommitOrder(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := newTestThreadService(store, pub, nil)
	ctx := context.Background()

	res, err := svc.StartOrContinue(ctx, "alice", []string{"bob"}, "new", "primero")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// bob confirma primero con un reloj adelantado.
	ahead := res.Message.CreatedAt.Add(time.Hour)
	store.now = func() time.Time { return ahead }
	concurrent, err := store.Append(ctx, domain.MessageDraft{ID: "bob-concurrent", ChatID: res.Chat.ID, SenderID: "bob", SenderName: "Bob", Body: "concurrente"})
	if err != nil {
		t.Fatalf("concurrent append: %v", err)
	}

	// alice confirma despues aunque su reloj haya quedado atras.
	store.now = func() time.Time { return res.Message.CreatedAt }
	msg, err := svc.Append(ctx, res.Chat.ID, "alice", "segundo")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !msg.CreatedAt.After(concurrent.Message.CreatedAt) {
		t.Fatalf("expected %v after %v", msg.CreatedAt, concurrent.Message.CreatedAt)
	}

	summary, err := svc.GetThread(ctx, res.Chat.ID, "bob")
	if err != nil {
		t.Fatalf("get thread: %v", err)
	}
	if summary.LastMessage == nil || summary.LastMessage.ID != msg.ID {
		t.Fatalf("expected stored preview %s, got %+v", msg.ID, summary.LastMessage)
	}
	if summary.LastMessage.Body != "segundo" || summary.LastMessage.SenderName != "Alice" {
		t.Fatalf("unexpected preview content: %+v", summary.LastMessage)
	}

	events := pub.snapshot()
	updated, ok := events[len(events)-1].payload.(ThreadUpdatedPayload)
	if !ok || updated.Chat.LastMessage == nil {
		t.Fatalf("expected thread-updated payload, got %#v", events[len(events)-1].payload)
	}
	if updated.Chat.LastMessage.ID != summary.LastMessage.ID || !updated.Chat.LastMessage.CreatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("published preview %+v differs from stored %+v", updated.Chat.LastMessage, summary.LastMessage)
	}

	msgs, _ := store.ListByChatID(ctx, res.Chat.ID)
	if last := msgs[len(msgs)-1]; last.ID != msg.ID {
		t.Fatalf("expected %s to be the latest message, got %s", msg.ID, last.ID)
	}
}

func TestStartOrContinue_FailedSendLeavesNoChat(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := newTestThreadService(store, pub, nil)
	ctx := context.Background()

	store.appendErr = domain.ErrStoreUnavailable
	if _, err := svc.StartOrContinue(ctx, "alice", []string{"bob"}, "new", "hola"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if threads, _ := svc.ListThreads(ctx, "alice"); len(threads) != 0 {
		t.Fatalf("expected no chat after failed send, got %+v", threads)
	}
	if len(pub.snapshot()) != 0 {
		t.Fatalf("expected no events after failed send")
	}

	store.appendErr = nil
	res, err := svc.StartOrContinue(ctx, "bob", []string{"alice"}, "new", "hola")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !res.IsNewChat {
		t.Fatalf("expected the retry to create the chat")
	}
	if store.creates != 1 {
		t.Fatalf("expected one chat created, got %d", store.creates)
	}
}

func TestAppend_RateLimited(t *testing.T) {
	store := newMemStore()
	svc := newTestThreadService(store, &recordingPublisher{}, NewSendRateLimiter(time.Minute, 1))
	ctx := context.Background()

	res, err := svc.StartOrContinue(ctx, "alice", []string{"bob"}, "new", "hola")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Append(ctx, res.Chat.ID, "alice", "otra vez"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if _, err := svc.Append(ctx, res.Chat.ID, "bob", "respuesta"); err != nil {
		t.Fatalf("expected bob unaffected, got %v", err)
	}
}

func seedUnread(store *memStore, chatID string, n int, base time.Time) []domain.Message {
	out := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		msg := domain.Message{
			ID:        fmt.Sprintf("m%02d", i),
			ChatID:    chatID,
			SenderID:  "bob",
			Body:      fmt.Sprintf("msg %d", i),
			SeenBy:    []domain.SeenEntry{{UserID: "bob", SeenAt: at}},
			CreatedAt: at,
		}
		store.seed(msg)
		out = append(out, msg)
	}
	return out
}

func TestFetchMessages_IncludesAllUnseen(t *testing.T) {
	store := newMemStore()
	svc := newTestThreadService(store, &recordingPublisher{}, nil)
	ctx := context.Background()

	chat := store.createChat(domain.Chat{ID: "c1", Participants: []string{"alice", "bob"}, ParticipantKey: "alice,bob"})
	seedUnread(store, chat.ID, 5, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	got, err := svc.FetchMessages(ctx, chat.ID, "alice", 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected all 5 unseen messages, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("expected ascending order")
		}
	}

	// bob vio todo: solo recibe la ventana.
	got, err = svc.FetchMessages(ctx, chat.ID, "bob", 1)
	if err != nil {
		t.Fatalf("fetch bob: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m04" {
		t.Fatalf("expected only latest for bob, got %+v", got)
	}

	// Leer no marca como visto.
	unread, _ := svc.UnreadCount(ctx, chat.ID, "alice")
	if unread != 5 {
		t.Fatalf("expected fetch to leave unread at 5, got %d", unread)
	}
}

func TestFetchMessages_DefaultAndMaxLimit(t *testing.T) {
	store := newMemStore()
	svc := NewThreadService(nil, store, store, newFakeDirectory(alice, bob), ThreadOptions{FetchLimit: 2, MaxFetchLimit: 3})
	ctx := context.Background()

	chat := store.createChat(domain.Chat{ID: "c1", Participants: []string{"alice", "bob"}, ParticipantKey: "alice,bob"})
	msgs := seedUnread(store, chat.ID, 6, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if _, err := store.MarkSeen(ctx, chat.ID, alice, nil, time.Now()); err != nil {
		t.Fatalf("mark seen: %v", err)
	}

	got, _ := svc.FetchMessages(ctx, chat.ID, "alice", 0)
	if len(got) != 2 || got[1].ID != msgs[5].ID {
		t.Fatalf("expected default window of 2, got %d", len(got))
	}
	got, _ = svc.FetchMessages(ctx, chat.ID, "alice", 100)
	if len(got) != 3 {
		t.Fatalf("expected clamp to 3, got %d", len(got))
	}
}

func TestMarkSeen_ClearsUnreadAndUpdatesPreview(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := newTestThreadService(store, pub, nil)
	ctx := context.Background()

	res, err := svc.StartOrContinue(ctx, "alice", []string{"bob"}, "new", "uno")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Append(ctx, res.Chat.ID, "alice", "dos"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if n, _ := svc.TotalUnread(ctx, "bob"); n != 2 {
		t.Fatalf("expected bob total unread 2, got %d", n)
	}

	marked, err := svc.MarkSeen(ctx, res.Chat.ID, "bob", nil)
	if err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 marked, got %d", marked)
	}
	if n, _ := svc.UnreadCount(ctx, res.Chat.ID, "bob"); n != 0 {
		t.Fatalf("expected unread 0, got %d", n)
	}

	summary, _ := svc.GetThread(ctx, res.Chat.ID, "bob")
	if names := summary.LastMessage.SeenByNames; len(names) != 2 || names[1] != "Bob" {
		t.Fatalf("expected preview seen by Alice and Bob, got %v", names)
	}

	events := pub.snapshot()
	if last := events[len(events)-1]; last.event != realtime.EventMessagesSeen {
		t.Fatalf("expected messages-seen event, got %s", last.event)
	}

	again, err := svc.MarkSeen(ctx, res.Chat.ID, "bob", nil)
	if err != nil || again != 0 {
		t.Fatalf("expected idempotent mark seen, got %d, %v", again, err)
	}
	if got := len(pub.snapshot()); got != len(events) {
		t.Fatalf("expected no event when nothing changed")
	}
}

func TestListThreads_UnreadCounts(t *testing.T) {
	store := newMemStore()
	svc := newTestThreadService(store, &recordingPublisher{}, nil)
	ctx := context.Background()

	if _, err := svc.StartOrContinue(ctx, "alice", []string{"bob"}, "new", "a-b"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.StartOrContinue(ctx, "carol", []string{"bob"}, "new", "c-b"); err != nil {
		t.Fatalf("send: %v", err)
	}

	threads, err := svc.ListThreads(ctx, "bob")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(threads))
	}
	for _, th := range threads {
		if th.UnreadCount != 1 {
			t.Fatalf("expected 1 unread in %s, got %d", th.Chat.ID, th.UnreadCount)
		}
	}

	threads, _ = svc.ListThreads(ctx, "alice")
	if len(threads) != 1 || threads[0].UnreadCount != 0 {
		t.Fatalf("unexpected threads for alice: %+v", threads)
	}
}

func TestOnThreadMutation_ReceivesEvents(t *testing.T) {
	svc := newTestThreadService(newMemStore(), &recordingPublisher{}, nil)
	var got []string
	svc.OnThreadMutation(func(_, event string, _ any) { got = append(got, event) })

	if _, err := svc.StartOrContinue(context.Background(), "alice", []string{"bob"}, "new", "hola"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 observed events, got %v", got)
	}
}
