package indexer

import (
	"sync"
	"time"
)

// EventKind tags an Event's variant, mirroring spec.md §4.4's emitted
// event list.
type EventKind string

const (
	EventInitialIndex EventKind = "InitialIndex"
	EventFileUpdated  EventKind = "FileUpdated"
	EventFileRemoved  EventKind = "FileRemoved"
	EventIndexError   EventKind = "IndexError"
)

// Event is the IndexUpdate broadcast payload. Only the fields relevant to
// Kind are populated; this mirrors a tagged union without needing a Go
// union type.
type Event struct {
	Kind EventKind

	// InitialIndex
	FileCount   int
	SymbolCount int
	FromCache   bool
	Duration    time.Duration

	// FileUpdated / FileRemoved / IndexError
	Path string

	// IndexError
	Message string
}

// Broadcaster fans one producer out to many subscribers. Each subscriber
// gets its own buffered channel; when a subscriber stalls and its buffer
// fills, the oldest queued event is dropped to make room rather than
// blocking the producer or other subscribers (spec.md §9's documented
// drop-oldest choice — bounded memory over guaranteed delivery, since a
// stalled CLI watcher should not back-pressure the indexer).
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel receiving every future event, and a cancel
// function that unsubscribes and releases the channel's buffer.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every current subscriber, dropping the oldest
// buffered event for any subscriber whose channel is full.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Close unsubscribes everyone, closing their channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
