package main

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"fyp-inbox/internal/domain"
)

// chatSnapshot es un chat con todos sus mensajes en orden ascendente.
type chatSnapshot struct {
	Chat     domain.Chat
	Messages []domain.Message
}

// finding es una violacion detectada por el juez.
type finding struct {
	ChatID string
	Rule   string
	Detail string
}

func (f finding) String() string {
	return fmt.Sprintf("%s [%s] %s", f.ChatID, f.Rule, f.Detail)
}

// judgeChat evalua las reglas de coherencia de un hilo.
func judgeChat(s chatSnapshot) []finding {
	var out []finding
	out = append(out, checkParticipants(s)...)
	out = append(out, checkPreview(s)...)
	out = append(out, checkSeenEntries(s)...)
	return out
}

func checkParticipants(s chatSnapshot) []finding {
	var out []finding
	normalized := domain.NormalizeParticipants(s.Chat.Participants)
	if len(normalized) < 2 {
		out = append(out, finding{s.Chat.ID, "participants", fmt.Sprintf("only %d distinct participants", len(normalized))})
	}
	if key := domain.ParticipantKey(s.Chat.Participants); s.Chat.ParticipantKey != "" && key != s.Chat.ParticipantKey {
		out = append(out, finding{s.Chat.ID, "participant-key", fmt.Sprintf("stored %q, expected %q", s.Chat.ParticipantKey, key)})
	}
	return out
}

// checkPreview verifica que last_message sea la proyeccion del ultimo mensaje.
func checkPreview(s chatSnapshot) []finding {
	if len(s.Messages) == 0 {
		if s.Chat.LastMessage != nil {
			return []finding{{s.Chat.ID, "preview", "preview set on chat without messages"}}
		}
		return nil
	}
	latest := slices.MaxFunc(s.Messages, func(a, b domain.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	p := s.Chat.LastMessage
	switch {
	case p == nil:
		return []finding{{s.Chat.ID, "preview", "missing preview"}}
	case p.ID != latest.ID && !p.CreatedAt.Equal(latest.CreatedAt):
		return []finding{{s.Chat.ID, "preview", fmt.Sprintf("preview %s is not latest message %s", p.ID, latest.ID)}}
	case p.ID == latest.ID && (p.Body != latest.Body || p.SenderID != latest.SenderID):
		return []finding{{s.Chat.ID, "preview", "preview content differs from message " + latest.ID}}
	}
	return nil
}

// checkSeenEntries verifica que el remitente haya visto su mensaje y que
// seen_by solo tenga participantes.
func checkSeenEntries(s chatSnapshot) []finding {
	var out []finding
	for _, m := range s.Messages {
		if !s.Chat.HasParticipant(m.SenderID) {
			out = append(out, finding{s.Chat.ID, "sender", fmt.Sprintf("message %s sent by non participant %s", m.ID, m.SenderID)})
		}
		if !m.SeenByUser(m.SenderID) {
			out = append(out, finding{s.Chat.ID, "self-seen", fmt.Sprintf("message %s not seen by its sender", m.ID)})
		}
		strangers := lo.Filter(m.SeenBy, func(e domain.SeenEntry, _ int) bool { return !s.Chat.HasParticipant(e.UserID) })
		for _, e := range strangers {
			out = append(out, finding{s.Chat.ID, "seen-by", fmt.Sprintf("message %s seen by non participant %s", m.ID, e.UserID)})
		}
		if dup := lo.FindDuplicatesBy(m.SeenBy, func(e domain.SeenEntry) string { return e.UserID }); len(dup) > 0 {
			out = append(out, finding{s.Chat.ID, "seen-by", fmt.Sprintf("message %s has duplicated seen entries", m.ID)})
		}
	}
	return out
}

// judgeDuplicates detecta dos chats con el mismo conjunto de participantes.
func judgeDuplicates(snaps []chatSnapshot) []finding {
	groups := lo.GroupBy(snaps, func(s chatSnapshot) string { return domain.ParticipantKey(s.Chat.Participants) })
	var out []finding
	for key, group := range groups {
		if len(group) > 1 {
			ids := lo.Map(group, func(s chatSnapshot, _ int) string { return s.Chat.ID })
			slices.Sort(ids)
			out = append(out, finding{ids[0], "duplicate-chat", fmt.Sprintf("participants %q shared by %v", key, ids)})
		}
	}
	return out
}
