package appointment

import (
	"fmt"

	"github.com/google/uuid"
)

// Reorder actions accepted by the priority endpoint.
const (
	ActionMoveUp      = "move_up"
	ActionMoveDown    = "move_down"
	ActionSetFirst    = "set_first"
	ActionSetPosition = "set_position"
)

func ValidAction(action string) bool {
	switch action {
	case ActionMoveUp, ActionMoveDown, ActionSetFirst, ActionSetPosition:
		return true
	}
	return false
}

// ReorderResult reports a queue mutation. Positions are 1-indexed for
// display; TotalWaiting is the queue size on the date.
type ReorderResult struct {
	Action           string
	PreviousPosition int
	NewPosition      int
	TotalWaiting     int
	Message          string
	Changed          bool
}

// WaitingQueue is the ordered attente subset of one calendar date. Its
// mutators renumber every member on each change, so priorities always form
// the contiguous sequence 0..n-1. The zero value is an empty queue.
type WaitingQueue struct {
	date    string
	entries []Appointment
}

// NewWaitingQueue builds a queue from the attente subset of date, already
// sorted ascending by (priority, heure, id). Entries fresh from a status
// change may still carry a stale or duplicate priority; position within the
// queue is defined by that sort order, not by the raw value.
func NewWaitingQueue(date string, entries []Appointment) *WaitingQueue {
	q := &WaitingQueue{date: date}
	q.entries = append(q.entries, entries...)
	return q
}

func (q *WaitingQueue) Len() int { return len(q.entries) }

// Position returns the zero-based index of id, or -1 when id is not queued.
func (q *WaitingQueue) Position(id uuid.UUID) int {
	for i := range q.entries {
		if q.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// Apply executes one reorder action and returns the result along with the
// renumbering to persist. A nil updates slice means nothing moved.
func (q *WaitingQueue) Apply(action string, id uuid.UUID, target int) (ReorderResult, []PriorityUpdate, error) {
	if !ValidAction(action) {
		return ReorderResult{}, nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	pos := q.Position(id)
	if pos < 0 {
		return ReorderResult{}, nil, ErrNotWaiting
	}

	n := len(q.entries)
	res := ReorderResult{
		Action:           action,
		PreviousPosition: pos + 1,
		NewPosition:      pos + 1,
		TotalWaiting:     n,
	}

	if n <= 1 {
		res.Message = "un seul patient en attente, aucun reclassement necessaire"
		return res, nil, nil
	}

	newPos := pos
	switch action {
	case ActionMoveUp:
		if pos == 0 {
			res.Message = "deja en premiere position"
			return res, nil, nil
		}
		newPos = pos - 1
	case ActionMoveDown:
		if pos == n-1 {
			res.Message = "deja en derniere position"
			return res, nil, nil
		}
		newPos = pos + 1
	case ActionSetFirst:
		newPos = 0
	case ActionSetPosition:
		newPos = clamp(target, 0, n-1)
	}

	if newPos == pos {
		// Only set_first and set_position land here. Their contract is a
		// full rewrite even when the target equals the current slot: fresh
		// entrants can still carry stale or duplicate priorities, and a
		// successful reorder must always leave the queue contiguous.
		if q.contiguousPriorities() {
			res.Message = "aucun reclassement necessaire"
			return res, nil, nil
		}
		res.Changed = true
		res.Message = "position inchangee, priorites renumerotees"
		return res, q.renumber(), nil
	}

	moved := q.entries[pos]
	q.entries = append(q.entries[:pos], q.entries[pos+1:]...)
	q.entries = append(q.entries[:newPos], append([]Appointment{moved}, q.entries[newPos:]...)...)

	updates := q.renumber()

	res.NewPosition = newPos + 1
	res.Changed = true
	res.Message = fmt.Sprintf("patient deplace de la position %d a la position %d", pos+1, newPos+1)
	return res, updates, nil
}

func (q *WaitingQueue) contiguousPriorities() bool {
	for i := range q.entries {
		if q.entries[i].Priority != i {
			return false
		}
	}
	return true
}

// renumber rewrites priority = index for every member, never a sparse
// insert, and returns the rows to persist.
func (q *WaitingQueue) renumber() []PriorityUpdate {
	updates := make([]PriorityUpdate, len(q.entries))
	for i := range q.entries {
		q.entries[i].Priority = i
		updates[i] = PriorityUpdate{ID: q.entries[i].ID, Priority: i}
	}
	return updates
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
