package service

import (
	"fmt"
	"time"

	"fyp-inbox/internal/domain"
)

// Constructores de eventos para los cambios de dominio que generan notificaciones.

// AnnouncementEvent notifica un anuncio. Con groupID vacio alcanza a toda la cohorte
// con los roles indicados (o solo coordinadores si no se selecciona ninguno).
func AnnouncementEvent(announcementID, title string, roles domain.RoleFlags, groupID string) Event {
	var audience domain.Audience = domain.AllWithRole{Roles: roles}
	if groupID != "" {
		audience = domain.GroupScoped{GroupID: groupID, Roles: roles}
	}
	return Event{
		Audience: audience,
		Template: "New announcement: {{.title}}",
		Params:   map[string]any{"title": title},
		Link:     "/announcements/" + announcementID,
		DedupKey: "announcement:" + announcementID,
	}
}

func RoleChangedEvent(userID, role string, granted bool) Event {
	verb := "removed from"
	if granted {
		verb = "granted"
	}
	return Event{
		Audience: domain.ExplicitUsers{UserIDs: []string{userID}},
		Template: "Your role was updated: {{.verb}} {{.role}}",
		Params:   map[string]any{"verb": verb, "role": role},
		Link:     "/profile",
	}
}

func GradePublishedEvent(projectID, projectTitle string, studentIDs []string) Event {
	return Event{
		Audience: domain.ExplicitUsers{UserIDs: studentIDs},
		Template: "A grade was published for {{.project}}",
		Params:   map[string]any{"project": projectTitle},
		Link:     "/projects/" + projectID + "/grades",
		DedupKey: "grade:" + projectID,
	}
}

// MeetingScheduledEvent avisa a todos los miembros del grupo del proyecto.
func MeetingScheduledEvent(meetingID, groupID string, at time.Time) Event {
	return Event{
		Audience: domain.GroupScoped{GroupID: groupID},
		Template: "Meeting scheduled for {{.when}}",
		Params:   map[string]any{"when": at.UTC().Format("2006-01-02 15:04 MST")},
		Link:     fmt.Sprintf("/groups/%s/meetings/%s", groupID, meetingID),
		DedupKey: "meeting:" + meetingID + ":" + at.UTC().Format(time.RFC3339),
	}
}
