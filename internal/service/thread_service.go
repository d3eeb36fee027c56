package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"fyp-inbox/internal/domain"
	"fyp-inbox/internal/realtime"
	"fyp-inbox/internal/repository"
)

// ThreadService encapsula los hilos de mensajes directos: resolución de identidad
// del chat, envío, lectura con reconciliación de no vistos y contadores.
type ThreadService struct {
	logger    *zap.Logger
	chats     repository.ChatRepository
	messages  repository.MessageRepository
	directory Directory
	publisher realtime.Publisher
	limiter   SendRateLimiter

	fetchLimit    int
	maxFetchLimit int
	now           func() time.Time

	mu        sync.RWMutex
	observers []MutationObserver
}

// MutationObserver recibe cada hecho publicado luego de un commit.
type MutationObserver func(room, event string, payload any)

// ThreadOptions agrupa parametros opcionales del servicio.
type ThreadOptions struct {
	Publisher     realtime.Publisher
	Limiter       SendRateLimiter
	FetchLimit    int
	MaxFetchLimit int
}

// StartResult es el resultado de StartOrContinue.
type StartResult struct {
	Chat      domain.Chat    `json:"chat"`
	Message   domain.Message `json:"message"`
	IsNewChat bool           `json:"is_new_chat"`
}

// MessageAppendedPayload viaja con realtime.EventMessageAppended.
type MessageAppendedPayload struct {
	ChatID  string         `json:"chat_id"`
	Message domain.Message `json:"message"`
}

// ThreadUpdatedPayload viaja con realtime.EventThreadUpdated.
type ThreadUpdatedPayload struct {
	Chat domain.Chat `json:"chat"`
}

// MessagesSeenPayload viaja con realtime.EventMessagesSeen.
type MessagesSeenPayload struct {
	ChatID     string    `json:"chat_id"`
	UserID     string    `json:"user_id"`
	MessageIDs []string  `json:"message_ids"`
	SeenAt     time.Time `json:"seen_at"`
}

func NewThreadService(
	logger *zap.Logger,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	directory Directory,
	opts ThreadOptions,
) *ThreadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 50
	}
	if opts.MaxFetchLimit < opts.FetchLimit {
		opts.MaxFetchLimit = opts.FetchLimit
	}
	return &ThreadService{
		logger:        logger,
		chats:         chats,
		messages:      messages,
		directory:     directory,
		publisher:     opts.Publisher,
		limiter:       opts.Limiter,
		fetchLimit:    opts.FetchLimit,
		maxFetchLimit: opts.MaxFetchLimit,
		now:           storeNow,
	}
}

// OnThreadMutation registra un observador adicional de los hechos publicados.
func (s *ThreadService) OnThreadMutation(fn MutationObserver) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// StartOrContinue envia body a un chat. Si chatID es vacio o "new" resuelve el chat
// por conjunto de participantes (recipients + initiator) y lo crea si no existe.
// Con un chatID explicito se usa ese chat sin revalidar membresía.
func (s *ThreadService) StartOrContinue(
	ctx context.Context,
	initiator string,
	recipients []string,
	chatID string,
	body string,
) (StartResult, error) {
	initiator = strings.TrimSpace(initiator)
	body = strings.TrimSpace(body)
	if initiator == "" || body == "" {
		return StartResult{}, domain.ErrInvalidInput
	}

	if !domain.IsNewChatID(chatID) {
		chat, err := s.chats.GetByID(ctx, strings.TrimSpace(chatID))
		if err != nil {
			return StartResult{}, err
		}
		if err := s.allowSend(ctx, initiator); err != nil {
			return StartResult{}, err
		}
		res, err := s.appendMessage(ctx, domain.MessageDraft{ChatID: chat.ID, SenderID: initiator, Body: body})
		if err != nil {
			return StartResult{}, err
		}
		return StartResult{Chat: res.Chat, Message: res.Message}, nil
	}

	others := lo.Without(domain.NormalizeParticipants(recipients), initiator)
	if len(others) == 0 {
		return StartResult{}, fmt.Errorf("%w: recipients required", domain.ErrInvalidInput)
	}
	participants := domain.NormalizeParticipants(append(others, initiator))
	if _, err := s.directory.ResolveUsers(ctx, participants); err != nil {
		return StartResult{}, err
	}
	if err := s.allowSend(ctx, initiator); err != nil {
		return StartResult{}, err
	}

	draft, err := s.draftFor(ctx, participants)
	if err != nil {
		return StartResult{}, err
	}
	draft.SenderID, draft.Body = initiator, body

	res, err := s.appendMessage(ctx, draft)
	if err != nil {
		return StartResult{}, err
	}
	if res.ChatCreated {
		s.logger.Info("chat created", zap.String("chat_id", res.Chat.ID), zap.Int("participants", len(participants)))
	}
	return StartResult{Chat: res.Chat, Message: res.Message, IsNewChat: res.ChatCreated}, nil
}

// draftFor apunta el borrador al chat con exactamente esos participantes o, si no
// existe, pide crearlo junto con el primer mensaje. El indice unico sobre la clave
// canonica evita duplicados entre escritores concurrentes y un fallo del envio no
// deja chats vacios.
func (s *ThreadService) draftFor(ctx context.Context, participants []string) (domain.MessageDraft, error) {
	key := domain.ParticipantKey(participants)
	existing, err := s.chats.GetByParticipantKey(ctx, key)
	if err == nil {
		return domain.MessageDraft{ChatID: existing.ID}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.MessageDraft{}, err
	}
	return domain.MessageDraft{NewChat: &domain.Chat{
		ID:             uuid.NewString(),
		Participants:   participants,
		ParticipantKey: key,
		CreatedAt:      s.now(),
	}}, nil
}

// Append envia un mensaje a un chat existente. El remitente debe ser participante.
func (s *ThreadService) Append(ctx context.Context, chatID, sender, body string) (domain.Message, error) {
	sender = strings.TrimSpace(sender)
	body = strings.TrimSpace(body)
	if sender == "" || body == "" {
		return domain.Message{}, domain.ErrInvalidInput
	}
	chat, err := s.participantChat(ctx, chatID, sender)
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.allowSend(ctx, sender); err != nil {
		return domain.Message{}, err
	}
	res, err := s.appendMessage(ctx, domain.MessageDraft{ChatID: chat.ID, SenderID: sender, Body: body})
	return res.Message, err
}

func (s *ThreadService) appendMessage(ctx context.Context, draft domain.MessageDraft) (domain.AppendResult, error) {
	senderUser, err := s.directory.ResolveUser(ctx, draft.SenderID)
	if err != nil {
		return domain.AppendResult{}, err
	}
	draft.ID = newMessageID()
	draft.SenderName = senderUser.Name()

	res, err := s.messages.Append(ctx, draft)
	if err != nil {
		s.logger.Error("append message failed", zap.String("chat_id", draft.ChatID), zap.Error(err))
		return domain.AppendResult{}, err
	}

	// Se publica lo confirmado por el store, no el borrador.
	room := res.Chat.ID
	s.publish(ctx, room, realtime.EventMessageAppended, MessageAppendedPayload{ChatID: room, Message: res.Message})
	s.publish(ctx, room, realtime.EventThreadUpdated, ThreadUpdatedPayload{Chat: res.Chat})
	return res, nil
}

// FetchMessages devuelve los ultimos limit mensajes mas cualquier mensaje que el
// solicitante no haya visto, aunque haya quedado fuera de la ventana. No marca nada como visto.
func (s *ThreadService) FetchMessages(ctx context.Context, chatID, requester string, limit int) ([]domain.Message, error) {
	if _, err := s.participantChat(ctx, chatID, requester); err != nil {
		return nil, err
	}
	all, err := s.messages.ListByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return ReconcileWindow(all, requester, s.normalizeLimit(limit)), nil
}

// MarkSeen registra que user vio los mensajes indicados (o todos los del chat si
// messageIDs esta vacio). Devuelve cuantas entradas nuevas se agregaron.
func (s *ThreadService) MarkSeen(ctx context.Context, chatID, userID string, messageIDs []string) (int, error) {
	if _, err := s.participantChat(ctx, chatID, userID); err != nil {
		return 0, err
	}
	viewer, err := s.directory.ResolveUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	ids := lo.Uniq(lo.Compact(lo.Map(messageIDs, func(id string, _ int) string { return strings.TrimSpace(id) })))
	at := s.now()
	marked, err := s.messages.MarkSeen(ctx, chatID, viewer, ids, at)
	if err != nil {
		return 0, err
	}
	if len(marked) > 0 {
		s.publish(ctx, chatID, realtime.EventMessagesSeen, MessagesSeenPayload{
			ChatID:     chatID,
			UserID:     userID,
			MessageIDs: marked,
			SeenAt:     at,
		})
	}
	return len(marked), nil
}

// ListThreads devuelve los hilos del usuario con su vista previa y no leidos.
func (s *ThreadService) ListThreads(ctx context.Context, userID string) ([]domain.ThreadSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.chats.ListForParticipant(ctx, userID)
}

// GetThread devuelve el resumen de un hilo del usuario.
func (s *ThreadService) GetThread(ctx context.Context, chatID, userID string) (domain.ThreadSummary, error) {
	chat, err := s.participantChat(ctx, chatID, userID)
	if err != nil {
		return domain.ThreadSummary{}, err
	}
	unread, err := s.chats.CountUnread(ctx, chat.ID, userID)
	if err != nil {
		return domain.ThreadSummary{}, err
	}
	return domain.ThreadSummary{Chat: chat, LastMessage: chat.LastMessage, UnreadCount: unread}, nil
}

// UnreadCount cuenta los mensajes de otros participantes que userID no vio.
func (s *ThreadService) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	if _, err := s.participantChat(ctx, chatID, userID); err != nil {
		return 0, err
	}
	return s.chats.CountUnread(ctx, chatID, userID)
}

// TotalUnread suma los no leidos de todos los hilos del usuario.
func (s *ThreadService) TotalUnread(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, domain.ErrInvalidInput
	}
	return s.chats.CountUnreadForUser(ctx, userID)
}

// CanJoin autoriza suscripciones realtime: solo participantes escuchan la sala.
func (s *ThreadService) CanJoin(ctx context.Context, room, userID string) (bool, error) {
	_, err := s.participantChat(ctx, room, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *ThreadService) participantChat(ctx context.Context, chatID, userID string) (domain.Chat, error) {
	chatID = strings.TrimSpace(chatID)
	userID = strings.TrimSpace(userID)
	if chatID == "" || userID == "" {
		return domain.Chat{}, domain.ErrInvalidInput
	}
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if !chat.HasParticipant(userID) {
		return domain.Chat{}, domain.ErrForbidden
	}
	return chat, nil
}

// storeNow trunca a microsegundos, la precision de timestamptz.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// newMessageID usa UUIDv7: ordena por tiempo y desempata mensajes del mismo instante.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *ThreadService) allowSend(ctx context.Context, sender string) error {
	if s.limiter != nil && !s.limiter.Allow(ctx, sender) {
		return domain.ErrRateLimited
	}
	return nil
}

func (s *ThreadService) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.fetchLimit
	}
	if limit > s.maxFetchLimit {
		return s.maxFetchLimit
	}
	return limit
}

// publish se llama solo despues de un commit. Un fallo de entrega no deshace el
// mensaje: los clientes lo recuperan en el proximo fetch.
func (s *ThreadService) publish(ctx context.Context, room, event string, payload any) {
	if s.publisher != nil {
		if err := s.publisher.Publish(context.WithoutCancel(ctx), room, event, payload); err != nil {
			s.logger.Warn("realtime publish failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
		}
	}
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(room, event, payload)
	}
}
