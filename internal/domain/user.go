package domain

import "time"

// RoleFlags agrupa los roles académicos de un usuario.
type RoleFlags struct {
	Student     bool `json:"student"`
	Advisor     bool `json:"advisor"`
	Judge       bool `json:"judge"`
	Coordinator bool `json:"coordinator"`
}

// Empty indica que no hay ningun rol seleccionado.
func (r RoleFlags) Empty() bool {
	return !r.Student && !r.Advisor && !r.Judge && !r.Coordinator
}

// Overlaps devuelve true si algun rol de other tambien esta en r.
func (r RoleFlags) Overlaps(other RoleFlags) bool {
	return (r.Student && other.Student) ||
		(r.Advisor && other.Advisor) ||
		(r.Judge && other.Judge) ||
		(r.Coordinator && other.Coordinator)
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	Roles       RoleFlags `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
}

// Name devuelve el nombre visible o el id como fallback.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}
