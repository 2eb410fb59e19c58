package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/rgehrsitz/kepay/internal/domain"
)

// EventKind names a catalog mutation
type EventKind string

const (
	EventAdded       EventKind = "added"
	EventActivated   EventKind = "activated"
	EventDeactivated EventKind = "deactivated"
	// EventReloaded replaces the whole catalog; subscribers should drop everything.
	EventReloaded EventKind = "reloaded"
)

// ChangeEvent describes one committed catalog write. FormulaIDs lists the
// target formula first, followed by any sibling the write demoted.
type ChangeEvent struct {
	ID         string
	Kind       EventKind
	Group      domain.GroupKey
	FormulaIDs []string
	At         time.Time
}

func newEvent(kind EventKind, group domain.GroupKey, ids ...string) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Group:      group,
		FormulaIDs: ids,
		At:         time.Now().UTC(),
	}
}
