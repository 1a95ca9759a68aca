package store

import (
	"encoding/json"
	"strings"
	"sync"
)

// notifier fans committed writes out to path subscribers. Each subscriber gets
// its own delivery goroutine fed by a 1-buffered latest-wins channel, so slow
// consumers see collapsed snapshots instead of blocking writers.
type notifier struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	path string
	ch   chan json.RawMessage
	done chan struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]*subscriber)}
}

// subscribe registers fn for snapshots of path and returns an unsubscribe func.
func (n *notifier) subscribe(path string, fn func(snapshot json.RawMessage)) func() {
	sub := &subscriber{
		path: path,
		ch:   make(chan json.RawMessage, 1),
		done: make(chan struct{}),
	}

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = sub
	n.mu.Unlock()

	go func() {
		for {
			select {
			case snap := <-sub.ch:
				fn(snap)
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(sub.done)
		})
	}
}

// publish notifies every subscriber whose path overlaps the written path.
// snapshotFn must return the current subtree value for a subscriber's path.
func (n *notifier) publish(written string, snapshotFn func(path string) json.RawMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		if !pathsOverlap(sub.path, written) {
			continue
		}
		snap := snapshotFn(sub.path)
		// Latest wins: drop a pending undelivered snapshot.
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
	}
}

// pathsOverlap reports whether a write at b is visible under a subscription at
// a (ancestor, descendant or equal path).
func pathsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(b, a+"/") || strings.HasPrefix(a, b+"/")
}
