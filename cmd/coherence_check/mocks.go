package main

import (
	"context"
	"slices"
	"sync"
	"time"

	"fyp-inbox/internal/domain"
)

// --- REPOSITORIOS EN MEMORIA ---

type memoryStore struct {
	mu            sync.Mutex
	users         map[string]domain.User
	groups        map[string][]string
	chats         map[string]domain.Chat
	byKey         map[string]string
	messages      map[string][]domain.Message
	notifications []domain.Notification
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    map[string]domain.User{},
		groups:   map[string][]string{},
		chats:    map[string]domain.Chat{},
		byKey:    map[string]string{},
		messages: map[string][]domain.Message{},
	}
}

func (m *memoryStore) addUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// UserRepository

func (m *memoryStore) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memoryStore) GetMany(_ context.Context, ids []string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memoryStore) ListIDsByRoles(_ context.Context, roles domain.RoleFlags) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, u := range m.users {
		if u.Roles.Overlaps(roles) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memoryStore) ListGroupMemberIDs(_ context.Context, groupID string, roles domain.RoleFlags) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.groups[groupID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var out []string
	for _, id := range members {
		if roles.Empty() || m.users[id].Roles.Overlaps(roles) {
			out = append(out, id)
		}
	}
	return out, nil
}

// chatStore y messageStore separan los metodos con el mismo nombre en ambos contratos.
type chatStore struct{ *memoryStore }

type messageStore struct{ *memoryStore }

func (c chatStore) GetByID(_ context.Context, id string) (domain.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chat, ok := c.chats[id]
	if !ok {
		return domain.Chat{}, domain.ErrNotFound
	}
	return chat, nil
}

func (c chatStore) GetByParticipantKey(_ context.Context, key string) (domain.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byKey[key]
	if !ok {
		return domain.Chat{}, domain.ErrNotFound
	}
	return c.chats[id], nil
}

func (c chatStore) ListForParticipant(_ context.Context, userID string) ([]domain.ThreadSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.ThreadSummary
	for id, chat := range c.chats {
		if chat.HasParticipant(userID) {
			out = append(out, domain.ThreadSummary{
				Chat:        chat,
				LastMessage: chat.LastMessage,
				UnreadCount: domain.CountUnread(c.messages[id], userID),
			})
		}
	}
	return out, nil
}

func (c chatStore) CountUnread(_ context.Context, chatID, userID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CountUnread(c.messages[chatID], userID), nil
}

func (c chatStore) CountUnreadForUser(_ context.Context, userID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for id, chat := range c.chats {
		if chat.HasParticipant(userID) {
			total += domain.CountUnread(c.messages[id], userID)
		}
	}
	return total, nil
}

func (s messageStore) Append(_ context.Context, draft domain.MessageDraft) (domain.AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res domain.AppendResult
	chatID := draft.ChatID
	if draft.NewChat != nil {
		if id, ok := s.byKey[draft.NewChat.ParticipantKey]; ok {
			chatID = id
		} else {
			s.chats[draft.NewChat.ID] = *draft.NewChat
			s.byKey[draft.NewChat.ParticipantKey] = draft.NewChat.ID
			chatID, res.ChatCreated = draft.NewChat.ID, true
		}
	}
	chat, ok := s.chats[chatID]
	if !ok {
		return domain.AppendResult{}, domain.ErrNotFound
	}

	msg, preview := draft.Commit(chat.ID, domain.NextMessageTime(time.Now(), chat.LastMessage))
	s.messages[chat.ID] = append(s.messages[chat.ID], msg)
	chat.LastMessage = &preview
	s.chats[chat.ID] = chat

	res.Chat, res.Message = chat, msg
	return res, nil
}

func (s messageStore) ListByChatID(_ context.Context, chatID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.messages[chatID])
	slices.SortStableFunc(out, func(a, b domain.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s messageStore) MarkSeen(_ context.Context, chatID string, viewer domain.User, ids []string, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var marked []string
	msgs := s.messages[chatID]
	for i := range msgs {
		if (len(ids) > 0 && !slices.Contains(ids, msgs[i].ID)) || msgs[i].SeenByUser(viewer.ID) {
			continue
		}
		msgs[i].SeenBy = append(msgs[i].SeenBy, domain.SeenEntry{UserID: viewer.ID, SeenAt: at})
		marked = append(marked, msgs[i].ID)
		if chat := s.chats[chatID]; chat.LastMessage != nil && chat.LastMessage.ID == msgs[i].ID {
			chat.LastMessage.SeenByNames = append(chat.LastMessage.SeenByNames, viewer.Name())
		}
	}
	return marked, nil
}

// NotificationRepository

type notificationStore struct{ *memoryStore }

func (n notificationStore) Create(_ context.Context, notif domain.Notification) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if notif.DedupKey != "" {
		for _, existing := range n.notifications {
			if existing.RecipientID == notif.RecipientID && existing.DedupKey == notif.DedupKey {
				return false, nil
			}
		}
	}
	n.notifications = append(n.notifications, notif)
	return true, nil
}

func (n notificationStore) ListByRecipient(_ context.Context, recipientID string, onlyUnread bool) ([]domain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Notification
	for _, notif := range n.notifications {
		if notif.RecipientID == recipientID && (!onlyUnread || !notif.Read) {
			out = append(out, notif)
		}
	}
	return out, nil
}

func (n notificationStore) MarkRead(_ context.Context, id, recipientID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.notifications {
		if n.notifications[i].ID == id && n.notifications[i].RecipientID == recipientID {
			n.notifications[i].Read = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (n notificationStore) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var count int64
	for i := range n.notifications {
		if n.notifications[i].RecipientID == recipientID && !n.notifications[i].Read {
			n.notifications[i].Read = true
			count++
		}
	}
	return count, nil
}

func (n notificationStore) Delete(_ context.Context, id, recipientID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.notifications {
		if n.notifications[i].ID == id && n.notifications[i].RecipientID == recipientID {
			n.notifications = append(n.notifications[:i], n.notifications[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (n notificationStore) CountUnread(_ context.Context, recipientID string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, notif := range n.notifications {
		if notif.RecipientID == recipientID && !notif.Read {
			count++
		}
	}
	return count, nil
}

// snapshot devuelve cada chat con sus mensajes para auditarlos.
func (m *memoryStore) snapshot() []chatSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chatSnapshot, 0, len(m.chats))
	for id, chat := range m.chats {
		msgs := slices.Clone(m.messages[id])
		slices.SortStableFunc(msgs, func(a, b domain.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
		out = append(out, chatSnapshot{Chat: chat, Messages: msgs})
	}
	return out
}
