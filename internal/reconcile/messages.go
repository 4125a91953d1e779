// Package reconcile maintains ordered, deduplicated views of the chat
// transcript and the song-request queue. Each view merges three input
// streams -- an initial snapshot, local optimistic mutations, and remote
// broadcasts -- and tolerates those inputs arriving in any interleaving.
package reconcile

import (
	"sort"
	"sync"

	"github.com/alfredjeanlab/waveroom/internal/model"
)

// MessageLog is the ordered chat transcript. Ordering is strictly by
// creation time ascending; optimistic entries sit where they would land
// once confirmed (appended, since their local timestamp is newest).
type MessageLog struct {
	mu sync.Mutex

	// selfKey is the local identity's key, used to recognize echoes of
	// this client's own broadcasts.
	selfKey string

	byID map[string]*model.Message
	list []*model.Message
}

// NewMessageLog creates an empty transcript for the given local identity.
func NewMessageLog(selfKey string) *MessageLog {
	return &MessageLog{
		selfKey: selfKey,
		byID:    make(map[string]*model.Message),
	}
}

// ApplySnapshot merges an authoritative bulk load. Confirmed entries are
// replaced wholesale; optimistic and failed placeholders survive, since
// their writes are still in flight (or awaiting retry).
func (l *MessageLog) ApplySnapshot(msgs []*model.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var placeholders []*model.Message
	for _, m := range l.list {
		if m.Stage != model.StageConfirmed {
			placeholders = append(placeholders, m)
		}
	}

	l.byID = make(map[string]*model.Message, len(msgs)+len(placeholders))
	l.list = l.list[:0]
	for _, m := range msgs {
		if _, ok := l.byID[m.ID]; ok {
			continue
		}
		cp := *m
		cp.Stage = model.StageConfirmed
		l.byID[cp.ID] = &cp
		l.list = append(l.list, &cp)
	}
	for _, p := range placeholders {
		if _, ok := l.byID[p.ID]; ok {
			continue
		}
		l.byID[p.ID] = p
		l.list = append(l.list, p)
	}
	l.resort()
}

// Insert adds a locally-originated entry (typically an optimistic
// placeholder). Duplicate ids are ignored.
func (l *MessageLog) Insert(msg *model.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.insertLocked(msg)
}

// Replace swaps the entry with the given id (a placeholder token) for the
// authoritative record, which may carry a different id and timestamp.
// Returns false if no such entry exists.
func (l *MessageLog) Replace(id string, msg *model.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	old, ok := l.byID[id]
	if !ok {
		return false
	}
	delete(l.byID, id)
	cp := *msg
	l.byID[cp.ID] = &cp
	for i, m := range l.list {
		if m == old {
			l.list[i] = &cp
			break
		}
	}
	l.resort()
	return true
}

// MarkFailed tags the entry with the given id as failed. The entry stays
// visible with its original content for retry.
func (l *MessageLog) MarkFailed(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.byID[id]
	if !ok {
		return false
	}
	m.Stage = model.StageFailed
	return true
}

// Remove drops the entry with the given id.
func (l *MessageLog) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeLocked(id)
}

// ApplyRemote merges a broadcast entry. Duplicates by id are updated in
// place. An echo of this client's own in-flight submission -- same author
// key while a matching optimistic placeholder is pending -- is suppressed;
// the write path owns that placeholder's reconciliation.
func (l *MessageLog) ApplyRemote(msg *model.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.byID[msg.ID]; ok {
		*existing = *msg
		existing.Stage = model.StageConfirmed
		l.resort()
		return
	}

	if msg.Author.Key() == l.selfKey && l.hasPendingFromSelfLocked() {
		return
	}

	cp := *msg
	cp.Stage = model.StageConfirmed
	l.insertLocked(&cp)
}

// Messages returns a copy of the current ordered transcript.
func (l *MessageLog) Messages() []*model.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*model.Message, len(l.list))
	for i, m := range l.list {
		cp := *m
		out[i] = &cp
	}
	return out
}

// Len returns the number of visible entries.
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.list)
}

func (l *MessageLog) insertLocked(msg *model.Message) {
	if _, ok := l.byID[msg.ID]; ok {
		return
	}
	cp := *msg
	l.byID[cp.ID] = &cp
	l.list = append(l.list, &cp)
	l.resort()
}

func (l *MessageLog) removeLocked(id string) bool {
	old, ok := l.byID[id]
	if !ok {
		return false
	}
	delete(l.byID, id)
	for i, m := range l.list {
		if m == old {
			l.list = append(l.list[:i], l.list[i+1:]...)
			break
		}
	}
	return true
}

func (l *MessageLog) hasPendingFromSelfLocked() bool {
	for _, m := range l.list {
		if m.Stage == model.StageOptimistic && m.Author.Key() == l.selfKey {
			return true
		}
	}
	return false
}

func (l *MessageLog) resort() {
	sort.SliceStable(l.list, func(i, j int) bool {
		return l.list[i].CreatedAt.Before(l.list[j].CreatedAt)
	})
}
