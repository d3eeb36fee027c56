package service

import (
	"slices"

	"github.com/samber/lo"

	"fyp-inbox/internal/domain"
)

// ReconcileWindow devuelve la ventana de los ultimos limit mensajes unida a todos
// los mensajes que requester todavia no vio, sin duplicados y en orden ascendente.
// all debe venir ordenado por created_at ascendente.
func ReconcileWindow(all []domain.Message, requester string, limit int) []domain.Message {
	if limit < 0 {
		limit = 0
	}
	start := len(all) - limit
	if start < 0 {
		start = 0
	}
	recent := all[start:]
	unseen := lo.Filter(all, func(m domain.Message, _ int) bool {
		return m.UnseenBy(requester)
	})

	merged := lo.UniqBy(append(slices.Clone(recent), unseen...), func(m domain.Message) string {
		return m.ID
	})
	slices.SortStableFunc(merged, func(a, b domain.Message) int {
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
	return merged
}
