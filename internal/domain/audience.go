package domain

import (
	"fmt"
	"strings"
)

// Audience decide quienes reciben una notificacion. Las variantes son
// ExplicitUsers, AllWithRole y GroupScoped.
type Audience interface {
	audienceKind() string
}

// ExplicitUsers es una lista fija de destinatarios.
type ExplicitUsers struct {
	UserIDs []string
}

// AllWithRole selecciona a toda la cohorte con alguno de los roles indicados.
// Sin roles seleccionados se asume solo coordinadores.
type AllWithRole struct {
	Roles RoleFlags
}

// GroupScoped restringe el predicado de roles a los miembros de un grupo/proyecto.
// Sin roles seleccionados alcanza a todos los miembros del grupo.
type GroupScoped struct {
	GroupID string
	Roles   RoleFlags
}

func (ExplicitUsers) audienceKind() string { return AudienceExplicit }
func (AllWithRole) audienceKind() string   { return AudienceRole }
func (GroupScoped) audienceKind() string   { return AudienceGroup }

const (
	AudienceExplicit = "users"
	AudienceRole     = "role"
	AudienceGroup    = "group"
)

// EffectiveRoles aplica la politica por defecto: sin roles => coordinadores.
func (a AllWithRole) EffectiveRoles() RoleFlags {
	if a.Roles.Empty() {
		return RoleFlags{Coordinator: true}
	}
	return a.Roles
}

// AudienceSpec es la forma serializable de Audience.
type AudienceSpec struct {
	Kind    string    `json:"kind"`
	UserIDs []string  `json:"user_ids,omitempty"`
	Roles   RoleFlags `json:"roles"`
	GroupID string    `json:"group_id,omitempty"`
}

// ToAudience valida los campos y construye la variante correspondiente.
func (s AudienceSpec) ToAudience() (Audience, error) {
	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case AudienceExplicit:
		if len(s.UserIDs) == 0 {
			return nil, fmt.Errorf("%w: users audience without user_ids", ErrInvalidInput)
		}
		return ExplicitUsers{UserIDs: s.UserIDs}, nil
	case AudienceRole, "":
		if strings.TrimSpace(s.GroupID) != "" {
			return GroupScoped{GroupID: strings.TrimSpace(s.GroupID), Roles: s.Roles}, nil
		}
		return AllWithRole{Roles: s.Roles}, nil
	case AudienceGroup:
		if strings.TrimSpace(s.GroupID) == "" {
			return nil, fmt.Errorf("%w: group audience without group_id", ErrInvalidInput)
		}
		return GroupScoped{GroupID: strings.TrimSpace(s.GroupID), Roles: s.Roles}, nil
	default:
		return nil, fmt.Errorf("%w: unknown audience kind %q", ErrInvalidInput, s.Kind)
	}
}
