package task

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// groupLocks serializes the mutations of each group. A group is locked by filling its one-slot channel.
type groupLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newGroupLocks() *groupLocks {
	return &groupLocks{slots: make(map[string]chan struct{})}
}

func (l *groupLocks) slot(groupID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[groupID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[groupID] = ch
	}
	return ch
}

// lock acquires the locks of `groupIDs` in lexical order and returns the func releasing them.
// It gives up when `ctx` is done, holding nothing.
func (l *groupLocks) lock(ctx context.Context, groupIDs ...string) (func(), error) {
	ids := make([]string, 0, len(groupIDs))
	seen := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	held := make([]chan struct{}, 0, len(ids))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, id := range ids {
		ch := l.slot(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			unlock()
			return func() {}, errors.Wrapf(ErrRepositoryUnavailable, "waiting for group %q: %v", id, ctx.Err())
		}
	}
	return unlock, nil
}
