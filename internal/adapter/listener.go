package adapter

import (
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/coregx/sqlforge/internal/dialects"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	notificationBuffer   = 64
)

// notifier tracks channel subscriptions and, for PostgreSQL, forwards
// LISTEN/NOTIFY events from a pq.Listener.
type notifier struct {
	dsn       string
	supported bool
	out       chan Notification

	mu       sync.Mutex
	listener *pq.Listener
	subs     map[string]struct{}
	done     chan struct{}
}

func newNotifier(d dialects.Dialect, dsn string) *notifier {
	return &notifier{
		dsn:       dsn,
		supported: d.Name() == "postgres" && dsn != "",
		out:       make(chan Notification, notificationBuffer),
		subs:      make(map[string]struct{}),
	}
}

func (n *notifier) subscribe(channel string) error {
	if !n.supported {
		return ErrNotificationsUnsupported
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subs[channel]; ok {
		return nil
	}
	if n.listener == nil {
		n.listener = pq.NewListener(n.dsn, listenerMinReconnect, listenerMaxReconnect, nil)
		n.done = make(chan struct{})
		go n.forward(n.listener, n.done)
	}
	if err := n.listener.Listen(channel); err != nil {
		return err
	}
	n.subs[channel] = struct{}{}
	return nil
}

func (n *notifier) unsubscribe(channel string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subs[channel]; !ok {
		return nil
	}
	delete(n.subs, channel)
	if n.listener == nil {
		return nil
	}
	return n.listener.Unlisten(channel)
}

func (n *notifier) channels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, 0, len(n.subs))
	for ch := range n.subs {
		out = append(out, ch)
	}
	return out
}

// forward relays listener events until the listener is closed.
// A nil event signals a listener reconnect and is dropped.
func (n *notifier) forward(l *pq.Listener, done chan struct{}) {
	for {
		select {
		case ev, ok := <-l.Notify:
			if !ok {
				return
			}
			if ev == nil {
				continue
			}
			select {
			case n.out <- Notification{Channel: ev.Channel, Payload: ev.Extra}:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}

func (n *notifier) close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.subs = make(map[string]struct{})
	if n.listener == nil {
		return nil
	}
	close(n.done)
	err := n.listener.Close()
	n.listener = nil
	return err
}
