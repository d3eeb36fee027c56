package http

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/multierr"

	"fyp-inbox/internal/domain"
	"fyp-inbox/internal/service"
)

var coordinator = domain.User{ID: "coord", Roles: domain.RoleFlags{Coordinator: true}}

func TestNotificationHandler_NotifyRequiresCoordinator(t *testing.T) {
	s := newTestServer(t)

	s.dir.EXPECT().ResolveUser(gomock.Any(), "stu1").
		Return(domain.User{ID: "stu1", Roles: domain.RoleFlags{Student: true}}, nil)
	s.notifs.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)

	rec := s.do(t, "stu1", http.MethodPost, "/notifications", map[string]any{
		"audience": map[string]any{"kind": "role", "roles": map[string]bool{"advisor": true}},
		"template": "hola",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNotificationHandler_Notify(t *testing.T) {
	s := newTestServer(t)

	s.dir.EXPECT().ResolveUser(gomock.Any(), "coord").Return(coordinator, nil)
	s.notifs.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, evt service.Event) (service.FanoutResult, error) {
			audience, ok := evt.Audience.(domain.AllWithRole)
			require.True(t, ok)
			require.True(t, audience.Roles.Advisor)
			require.Equal(t, "Reunion {{.day}}", evt.Template)
			return service.FanoutResult{Created: 4}, nil
		})

	rec := s.do(t, "coord", http.MethodPost, "/notifications", map[string]any{
		"audience": map[string]any{"kind": "role", "roles": map[string]bool{"advisor": true}},
		"template": "Reunion {{.day}}",
		"params":   map[string]string{"day": "lunes"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"created":4,"skipped":0,"failed":[]}`, rec.Body.String())
}

func TestNotificationHandler_NotifyErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"empty audience", domain.ErrInvalidAudience, http.StatusUnprocessableEntity},
		{"unknown user", domain.ErrNotFound, http.StatusNotFound},
		{"total failure", multierr.Combine(domain.ErrStoreUnavailable, domain.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			s.dir.EXPECT().ResolveUser(gomock.Any(), "coord").Return(coordinator, nil)
			s.notifs.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(service.FanoutResult{}, tc.err)

			rec := s.do(t, "coord", http.MethodPost, "/notifications", map[string]any{
				"audience": map[string]any{"kind": "users", "user_ids": []string{"x"}},
				"template": "hola",
			})
			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestNotificationHandler_InvalidAudienceSpec(t *testing.T) {
	s := newTestServer(t)
	s.dir.EXPECT().ResolveUser(gomock.Any(), "coord").Return(coordinator, nil)

	rec := s.do(t, "coord", http.MethodPost, "/notifications", map[string]any{
		"audience": map[string]any{"kind": "group"},
		"template": "hola",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationHandler_DomainEvents(t *testing.T) {
	s := newTestServer(t)
	s.dir.EXPECT().ResolveUser(gomock.Any(), "coord").Return(coordinator, nil).Times(2)

	s.notifs.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, evt service.Event) (service.FanoutResult, error) {
			require.Equal(t, "grade:p1", evt.DedupKey)
			return service.FanoutResult{Created: 2}, nil
		})
	rec := s.do(t, "coord", http.MethodPost, "/notifications/events/grade", map[string]any{
		"project_id":    "p1",
		"project_title": "FYP",
		"student_ids":   []string{"s1", "s2"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	s.notifs.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, evt service.Event) (service.FanoutResult, error) {
			audience, ok := evt.Audience.(domain.GroupScoped)
			require.True(t, ok)
			require.Equal(t, "g1", audience.GroupID)
			return service.FanoutResult{Created: 3}, nil
		})
	rec = s.do(t, "coord", http.MethodPost, "/notifications/events/meeting", map[string]any{
		"meeting_id": "m1",
		"group_id":   "g1",
		"at":         "2025-03-02T15:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestNotificationHandler_Inbox(t *testing.T) {
	s := newTestServer(t)

	s.notifs.EXPECT().List(gomock.Any(), "stu1", true).Return([]domain.Notification{{ID: "n1", RecipientID: "stu1"}}, nil)
	rec := s.do(t, "stu1", http.MethodGet, "/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, "stu1", http.MethodGet, "/notifications?unread=maybe", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	s.notifs.EXPECT().UnreadCount(gomock.Any(), "stu1").Return(1, nil)
	rec = s.do(t, "stu1", http.MethodGet, "/notifications/unread", nil)
	require.JSONEq(t, `{"unread_count":1}`, rec.Body.String())

	s.notifs.EXPECT().MarkRead(gomock.Any(), "n1", "stu1").Return(nil)
	rec = s.do(t, "stu1", http.MethodPost, "/notifications/n1/read", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	s.notifs.EXPECT().MarkRead(gomock.Any(), "n1", "stu2").Return(domain.ErrNotFound)
	rec = s.do(t, "stu2", http.MethodPost, "/notifications/n1/read", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	s.notifs.EXPECT().MarkAllRead(gomock.Any(), "stu1").Return(int64(2), nil)
	rec = s.do(t, "stu1", http.MethodPost, "/notifications/read-all", nil)
	require.JSONEq(t, `{"marked":2}`, rec.Body.String())

	s.notifs.EXPECT().Delete(gomock.Any(), "n1", "stu1").Return(nil)
	rec = s.do(t, "stu1", http.MethodDelete, "/notifications/n1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
