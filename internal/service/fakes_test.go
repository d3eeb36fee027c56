package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"fyp-inbox/internal/domain"
)

// memStore implementa ChatRepository y MessageRepository en memoria con la misma
// semantica que las consultas de Postgres.
type memStore struct {
	mu        sync.Mutex
	chats     map[string]domain.Chat
	byKey     map[string]string
	messages  map[string][]domain.Message
	appendErr error
	seenErr   error
	creates   int
	// now es el reloj del store, leido con el lock tomado como clock_timestamp().
	now func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		chats:    map[string]domain.Chat{},
		byKey:    map[string]string{},
		messages: map[string][]domain.Message{},
		now:      storeNow,
	}
}

// createChat registra un chat sin mensajes para armar escenarios.
func (m *memStore) createChat(chat domain.Chat) domain.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = chat
	m.byKey[chat.ParticipantKey] = chat.ID
	return chat
}

func (m *memStore) GetByID(_ context.Context, id string) (domain.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[id]
	if !ok {
		return domain.Chat{}, domain.ErrNotFound
	}
	return chat, nil
}

func (m *memStore) GetByParticipantKey(_ context.Context, key string) (domain.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[key]
	if !ok {
		return domain.Chat{}, domain.ErrNotFound
	}
	return m.chats[id], nil
}

func (m *memStore) ListForParticipant(_ context.Context, userID string) ([]domain.ThreadSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ThreadSummary
	for _, chat := range m.chats {
		if !chat.HasParticipant(userID) {
			continue
		}
		out = append(out, domain.ThreadSummary{
			Chat:        chat,
			LastMessage: chat.LastMessage,
			UnreadCount: domain.CountUnread(m.messages[chat.ID], userID),
		})
	}
	return out, nil
}

func (m *memStore) CountUnread(_ context.Context, chatID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CountUnread(m.messages[chatID], userID), nil
}

func (m *memStore) CountUnreadForUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for id, chat := range m.chats {
		if chat.HasParticipant(userID) {
			total += domain.CountUnread(m.messages[id], userID)
		}
	}
	return total, nil
}

func (m *memStore) Append(_ context.Context, draft domain.MessageDraft) (domain.AppendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return domain.AppendResult{}, m.appendErr
	}

	var res domain.AppendResult
	chatID := draft.ChatID
	if draft.NewChat != nil {
		if id, ok := m.byKey[draft.NewChat.ParticipantKey]; ok {
			chatID = id
		} else {
			m.creates++
			m.chats[draft.NewChat.ID] = *draft.NewChat
			m.byKey[draft.NewChat.ParticipantKey] = draft.NewChat.ID
			chatID, res.ChatCreated = draft.NewChat.ID, true
		}
	}
	chat, ok := m.chats[chatID]
	if !ok {
		return domain.AppendResult{}, domain.ErrNotFound
	}

	msg, preview := draft.Commit(chat.ID, domain.NextMessageTime(m.now(), chat.LastMessage))
	m.messages[chat.ID] = append(m.messages[chat.ID], msg)
	chat.LastMessage = &preview
	m.chats[chat.ID] = chat

	res.Chat, res.Message = chat, msg
	return res, nil
}

func (m *memStore) ListByChatID(_ context.Context, chatID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.messages[chatID])
	slices.SortStableFunc(out, func(a, b domain.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (m *memStore) MarkSeen(_ context.Context, chatID string, viewer domain.User, ids []string, at time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seenErr != nil {
		return nil, m.seenErr
	}
	var marked []string
	msgs := m.messages[chatID]
	for i := range msgs {
		if len(ids) > 0 && !slices.Contains(ids, msgs[i].ID) {
			continue
		}
		if msgs[i].SeenByUser(viewer.ID) {
			continue
		}
		msgs[i].SeenBy = append(msgs[i].SeenBy, domain.SeenEntry{UserID: viewer.ID, SeenAt: at})
		marked = append(marked, msgs[i].ID)

		chat := m.chats[chatID]
		if chat.LastMessage != nil && chat.LastMessage.ID == msgs[i].ID {
			chat.LastMessage.SeenByNames = append(chat.LastMessage.SeenByNames, viewer.Name())
			m.chats[chatID] = chat
		}
	}
	return marked, nil
}

// seed agrega un mensaje sin pasar por el servicio.
func (m *memStore) seed(msg domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
}

type fakeDirectory struct {
	users  map[string]domain.User
	groups map[string][]string
	err    error
}

func newFakeDirectory(users ...domain.User) *fakeDirectory {
	d := &fakeDirectory{users: map[string]domain.User{}, groups: map[string][]string{}}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) ResolveUser(_ context.Context, id string) (domain.User, error) {
	if d.err != nil {
		return domain.User{}, d.err
	}
	u, ok := d.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (d *fakeDirectory) ResolveUsers(ctx context.Context, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		u, err := d.ResolveUser(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = u
	}
	return out, nil
}

func (d *fakeDirectory) UsersMatchingRole(_ context.Context, roles domain.RoleFlags, groupID string) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	var candidates []string
	if groupID != "" {
		members, ok := d.groups[groupID]
		if !ok {
			return nil, domain.ErrNotFound
		}
		candidates = members
	} else {
		for id := range d.users {
			candidates = append(candidates, id)
		}
	}
	var out []string
	for _, id := range candidates {
		u := d.users[id]
		if roles.Empty() || u.Roles.Overlaps(roles) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

type recordedEvent struct {
	room    string
	event   string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, room, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{room: room, event: event, payload: payload})
	return p.err
}

func (p *recordingPublisher) snapshot() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

// stepClock avanza un milisegundo por llamada para que el orden sea deterministico.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Millisecond)
		return cur
	}
}
