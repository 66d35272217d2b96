// Package sse streams index changes to HTTP clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/notegraph/internal/indexer"
)

// Event types emitted by the broker.
const (
	TypeNoteCreated      = "note.created"
	TypeNoteUpdated      = "note.updated"
	TypeNoteDeleted      = "note.deleted"
	TypeIndexSynced      = "index.synced"
	TypeIndexInitialized = "index.initialized"
	TypeGraphUpdated     = "graph.updated"
)

// DefaultGraphThrottle is the minimum gap between two graph.updated events.
const DefaultGraphThrottle = 2 * time.Second

const clientBuffer = 64

// Event is one message broadcast to every client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteEvent is the payload of note.* events.
type NoteEvent struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// SyncEvent is the payload of index.synced.
type SyncEvent struct {
	RunID     string `json:"run_id"`
	Added     int    `json:"added"`
	Updated   int    `json:"updated"`
	Removed   int    `json:"removed"`
	Unchanged int    `json:"unchanged"`
	Failures  int    `json:"failures"`
}

// batch is a group of events followed by a throttled graph.updated.
type batch struct {
	events      []Event
	graphChange bool
}

// Broker fans events out to connected clients.
//
// A single loop goroutine owns the client set and the graph throttle
// timestamp; public methods talk to it over channels.
type Broker struct {
	graphMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	batchCh       chan batch
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits graph.updated at most once per graphThrottle.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = DefaultGraphThrottle
	}
	b := &Broker{
		graphMin:      graphThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		batchCh:       make(chan batch, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastGraph time.Time

	broadcast := func(e Event) {
		raw, err := encode(e)
		if err != nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case bt := <-b.batchCh:
			for _, e := range bt.events {
				broadcast(e)
			}
			if !bt.graphChange {
				continue
			}
			if now := time.Now(); now.Sub(lastGraph) >= b.graphMin {
				lastGraph = now
				broadcast(Event{Type: TypeGraphUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func (b *Broker) send(bt batch) {
	if b.closed.Load() {
		return
	}
	select {
	case b.batchCh <- bt:
	case <-b.stopped:
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client and returns its message channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish broadcasts a single event.
func (b *Broker) Publish(e Event) {
	b.send(batch{events: []Event{e}})
}

// PublishSync broadcasts one note event per change, an index.synced
// summary and, when anything changed, a throttled graph.updated.
func (b *Broker) PublishSync(res *indexer.SyncResult) {
	if res == nil {
		return
	}
	events := make([]Event, 0, len(res.Changes)+1)
	for _, c := range res.Changes {
		events = append(events, Event{Type: noteEventType(c.Kind), Data: NoteEvent{ID: c.ID, Path: c.Path}})
	}
	events = append(events, Event{Type: TypeIndexSynced, Data: SyncEvent{
		RunID:     res.RunID,
		Added:     res.Added,
		Updated:   res.Updated,
		Removed:   res.Removed,
		Unchanged: res.Unchanged,
		Failures:  res.Failures,
	}})
	b.send(batch{events: events, graphChange: len(res.Changes) > 0})
}

// PublishInitialized broadcasts the summary of a full rebuild and a
// throttled graph.updated.
func (b *Broker) PublishInitialized(res *indexer.InitResult) {
	if res == nil {
		return
	}
	b.send(batch{
		events:      []Event{{Type: TypeIndexInitialized, Data: res}},
		graphChange: true,
	})
}

func noteEventType(k indexer.ChangeKind) string {
	switch k {
	case indexer.ChangeCreated:
		return TypeNoteCreated
	case indexer.ChangeDeleted:
		return TypeNoteDeleted
	default:
		return TypeNoteUpdated
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
