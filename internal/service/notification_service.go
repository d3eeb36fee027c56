package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fyp-inbox/internal/domain"
	"fyp-inbox/internal/repository"
)

// Event es un hecho de dominio a convertir en una notificacion por destinatario.
type Event struct {
	Audience domain.Audience
	// Template usa sintaxis text/template sobre Params, p.ej. "Nueva nota en {{.project}}".
	Template string
	Params   map[string]any
	Link     string
	// DedupKey opcional: con clave, repetir el evento no duplica notificaciones.
	DedupKey string
}

// FanoutResult resume un Notify. Los fallos por destinatario no abortan el lote.
type FanoutResult struct {
	Created int              `json:"created"`
	Skipped int              `json:"skipped"`
	Failed  map[string]error `json:"-"`
	Err     error            `json:"-"`
}

// FailedRecipients devuelve los ids cuyo insert fallo.
func (r FanoutResult) FailedRecipients() []string {
	return lo.Keys(r.Failed)
}

// NotificationService expande eventos en filas del inbox y las administra.
type NotificationService struct {
	logger      *zap.Logger
	repo        repository.NotificationRepository
	directory   Directory
	concurrency int
	now         func() time.Time
}

func NewNotificationService(
	logger *zap.Logger,
	repo repository.NotificationRepository,
	directory Directory,
	concurrency int,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &NotificationService{
		logger:      logger,
		repo:        repo,
		directory:   directory,
		concurrency: concurrency,
		now:         storeNow,
	}
}

// Notify resuelve la audiencia e inserta una notificacion no leida por destinatario.
// Devuelve domain.ErrInvalidAudience si no hay destinatarios. Si todos los inserts
// fallan devuelve error; con fallos parciales el error queda en FanoutResult.Err.
func (s *NotificationService) Notify(ctx context.Context, evt Event) (FanoutResult, error) {
	message, err := renderTemplate(evt.Template, evt.Params)
	if err != nil {
		return FanoutResult{}, err
	}

	recipients, err := s.ResolveAudience(ctx, evt.Audience)
	if err != nil {
		return FanoutResult{}, err
	}
	if len(recipients) == 0 {
		return FanoutResult{}, domain.ErrInvalidAudience
	}

	var (
		mu     sync.Mutex
		result = FanoutResult{Failed: map[string]error{}}
		g      errgroup.Group
	)
	g.SetLimit(s.concurrency)
	createdAt := s.now()
	link := strings.TrimSpace(evt.Link)
	dedupKey := strings.TrimSpace(evt.DedupKey)

	for _, recipient := range recipients {
		g.Go(func() error {
			inserted, err := s.repo.Create(ctx, domain.Notification{
				ID:          uuid.NewString(),
				RecipientID: recipient,
				Message:     message,
				Link:        link,
				Read:        false,
				DedupKey:    dedupKey,
				CreatedAt:   createdAt,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed[recipient] = err
				result.Err = multierr.Append(result.Err, fmt.Errorf("recipient %s: %w", recipient, err))
			case inserted:
				result.Created++
			default:
				result.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(result.Failed) > 0 {
		s.logger.Warn("notification fanout partial failure",
			zap.Int("recipients", len(recipients)),
			zap.Int("created", result.Created),
			zap.Int("failed", len(result.Failed)),
			zap.Error(result.Err),
		)
		if result.Created == 0 && result.Skipped == 0 {
			return result, result.Err
		}
	}
	return result, nil
}

// ResolveAudience expande la regla de audiencia a ids unicos.
func (s *NotificationService) ResolveAudience(ctx context.Context, audience domain.Audience) ([]string, error) {
	var (
		ids []string
		err error
	)
	switch a := audience.(type) {
	case domain.ExplicitUsers:
		ids = domain.NormalizeParticipants(a.UserIDs)
		if len(ids) == 0 {
			return nil, nil
		}
		if _, err := s.directory.ResolveUsers(ctx, ids); err != nil {
			return nil, err
		}
	case domain.AllWithRole:
		ids, err = s.directory.UsersMatchingRole(ctx, a.EffectiveRoles(), "")
	case domain.GroupScoped:
		if strings.TrimSpace(a.GroupID) == "" {
			return nil, fmt.Errorf("%w: group_id required", domain.ErrInvalidInput)
		}
		ids, err = s.directory.UsersMatchingRole(ctx, a.Roles, strings.TrimSpace(a.GroupID))
	case nil:
		return nil, fmt.Errorf("%w: audience required", domain.ErrInvalidInput)
	default:
		return nil, fmt.Errorf("%w: unsupported audience %T", domain.ErrInvalidInput, audience)
	}
	if err != nil {
		return nil, err
	}
	return lo.Uniq(lo.Compact(ids)), nil
}

func (s *NotificationService) List(ctx context.Context, userID string, onlyUnread bool) ([]domain.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.repo.ListByRecipient(ctx, userID, onlyUnread)
}

// MarkRead es monotono: no existe camino para volver a no leida.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	id, userID = strings.TrimSpace(id), strings.TrimSpace(userID)
	if id == "" || userID == "" {
		return domain.ErrInvalidInput
	}
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, domain.ErrInvalidInput
	}
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, id, userID string) error {
	id, userID = strings.TrimSpace(id), strings.TrimSpace(userID)
	if id == "" || userID == "" {
		return domain.ErrInvalidInput
	}
	return s.repo.Delete(ctx, id, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, domain.ErrInvalidInput
	}
	return s.repo.CountUnread(ctx, userID)
}

func renderTemplate(text string, params map[string]any) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: template required", domain.ErrInvalidInput)
	}
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tpl, err := template.New("notification").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// IsFanoutUnavailable indica si el fallo total se debio a que el store no responde.
func IsFanoutUnavailable(err error) bool {
	for _, e := range multierr.Errors(err) {
		if errors.Is(e, domain.ErrStoreUnavailable) {
			return true
		}
	}
	return false
}
