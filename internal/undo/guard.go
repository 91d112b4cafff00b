// Package undo tracks, per chat, whether the most recent insertion may
// still be taken back.
package undo

import (
	"errors"
	"sync"
	"time"

	"tally/internal/ledger"
)

var (
	ErrNoPriorInsertion = errors.New("there is no record to be undone")
	ErrWindowExpired    = errors.New("the undo window for the most recent record has expired")
)

type action int

const (
	actionNone action = iota
	actionNew
	actionUndo
)

type state struct {
	last    action
	ref     ledger.Ref
	armedAt time.Time
}

// Guard holds the single undo slot of each chat. It has no storage
// authority: TryUndo only yields the reference, deletion is the caller's.
type Guard struct {
	mu     sync.Mutex
	window time.Duration
	chats  map[string]*state
}

func NewGuard(window time.Duration) *Guard {
	return &Guard{window: window, chats: make(map[string]*state)}
}

// Arm records the latest insertion, unconditionally replacing any prior
// state: only the most recent record is ever undoable.
func (g *Guard) Arm(chatID string, ref ledger.Ref, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chats[chatID] = &state{last: actionNew, ref: ref, armedAt: now}
}

// TryUndo consumes the undo slot. A second consecutive undo fails with
// ErrNoPriorInsertion regardless of timing.
func (g *Guard) TryUndo(chatID string, now time.Time) (ledger.Ref, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.chats[chatID]
	if !ok || st.last != actionNew {
		return ledger.Ref{}, ErrNoPriorInsertion
	}
	if now.Sub(st.armedAt) > g.window {
		return ledger.Ref{}, ErrWindowExpired
	}
	st.last = actionUndo
	return st.ref, nil
}
