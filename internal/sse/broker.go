// Package sse implements the desktop event bus: named topics delivered to
// in-process listeners and to browsers over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Topics.
const (
	TopicDocumentsChanged = "documents.changed"
	TopicEncryptionNotice = "encryption.notice"
	TopicOpenApp          = "open.app"
	TopicWindowOpened     = "window.opened"
	TopicWindowClosed     = "window.closed"
	TopicWindowFocused    = "window.focused"
	TopicWindowsMenu      = "windows.menu"
	TopicIconsUpdated     = "icons.updated"
)

// Event represents an event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type listener struct {
	ch     chan Event
	topics map[string]struct{} // empty means all topics
}

func (l *listener) wants(topic string) bool {
	if len(l.topics) == 0 {
		return true
	}
	_, ok := l.topics[topic]
	return ok
}

// Broker manages SSE clients and in-process listeners and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, listeners, icons throttle). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	iconsMin time.Duration
	log      *slog.Logger
	dropped  atomic.Uint64

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	listenCh      chan *listener
	unlistenCh    chan *listener
	publishCh     chan Event
	iconsCh       chan any
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger used to report dropped events.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.log = l }
}

// NewBroker creates a new broker. icons.updated is emitted at most once per
// iconsThrottle; the latest payload is flushed when the window ends.
func NewBroker(iconsThrottle time.Duration, opts ...Option) *Broker {
	if iconsThrottle <= 0 {
		iconsThrottle = 100 * time.Millisecond
	}

	b := &Broker{
		iconsMin:      iconsThrottle,
		log:           slog.Default(),
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		listenCh:      make(chan *listener),
		unlistenCh:    make(chan *listener),
		publishCh:     make(chan Event, 256),
		iconsCh:       make(chan any, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, fn := range opts {
		fn(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	listeners := make(map[*listener]struct{})
	var (
		lastIcons    time.Time
		pendingIcons any
		hasPending   bool
		flush        <-chan time.Time
	)

	broadcast := func(event Event) {
		for l := range listeners {
			if !l.wants(event.Type) {
				continue
			}
			select {
			case l.ch <- event:
			default:
				b.log.Warn("sse: listener buffer full, event dropped",
					slog.String("topic", event.Type),
					slog.Int("buffered", len(l.ch)))
				b.dropped.Add(1)
			}
		}

		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			for l := range listeners {
				close(l.ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case l := <-b.listenCh:
			listeners[l] = struct{}{}

		case l := <-b.unlistenCh:
			if _, ok := listeners[l]; ok {
				delete(listeners, l)
				close(l.ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case data := <-b.iconsCh:
			now := time.Now()
			if now.Sub(lastIcons) >= b.iconsMin {
				lastIcons = now
				broadcast(Event{Type: TopicIconsUpdated, Data: data})
				continue
			}
			pendingIcons, hasPending = data, true
			if flush == nil {
				flush = time.After(b.iconsMin - now.Sub(lastIcons))
			}

		case <-flush:
			flush = nil
			if hasPending {
				lastIcons = time.Now()
				broadcast(Event{Type: TopicIconsUpdated, Data: pendingIcons})
				pendingIcons, hasPending = nil, false
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new SSE client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
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

// Listen registers an in-process listener for the given topics (all topics
// when none are given). The returned cancel func removes it and closes the
// channel. Slow listeners miss events rather than stall the bus; each miss
// is logged and counted in Dropped.
func (b *Broker) Listen(topics ...string) (<-chan Event, func()) {
	l := &listener{ch: make(chan Event, 64), topics: make(map[string]struct{}, len(topics))}
	for _, t := range topics {
		l.topics[t] = struct{}{}
	}
	if b.closed.Load() {
		close(l.ch)
		return l.ch, func() {}
	}
	select {
	case b.listenCh <- l:
	case <-b.stopped:
		close(l.ch)
		return l.ch, func() {}
	}
	return l.ch, func() {
		if b.closed.Load() {
			return
		}
		select {
		case b.unlistenCh <- l:
		case <-b.stopped:
		}
	}
}

// Dropped reports how many events in-process listeners have missed because
// their buffer was full.
func (b *Broker) Dropped() uint64 { return b.dropped.Load() }

// ClientCount returns the number of connected SSE clients.
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

// Publish sends an event to all listeners and clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishIcons publishes a throttled icons.updated event carrying data.
func (b *Broker) PublishIcons(data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.iconsCh <- data:
	case <-b.stopped:
	}
}

// DocumentsChanged announces that the set of stored records changed.
func (b *Broker) DocumentsChanged() {
	b.Publish(Event{Type: TopicDocumentsChanged, Data: map[string]string{}})
}

// EncryptionNotice announces the one-time encryption notice.
func (b *Broker) EncryptionNotice() {
	b.Publish(Event{Type: TopicEncryptionNotice, Data: map[string]string{}})
}

// OpenApp asks the shell to open the app with the given id.
func (b *Broker) OpenApp(id string) {
	b.Publish(Event{Type: TopicOpenApp, Data: map[string]string{"id": id}})
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
	w.Header().Set("Access-Control-Allow-Origin", "*")
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
