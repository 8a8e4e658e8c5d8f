package repository

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobboard-messaging/internal/domain"
)

// watcher drives one live subscription. It reloads a snapshot when kicked or
// on every poll tick and hands it to onChange only when it differs from the
// previous delivery. Delivery and stop share mu, so once stop returns the
// callback never runs again.
type watcher[T any] struct {
	load     func(ctx context.Context) (T, error)
	onChange func(T)
	interval time.Duration
	logger   *slog.Logger

	kick     chan struct{}
	cancel   context.CancelFunc
	onStop   func()
	stopOnce sync.Once

	mu      sync.Mutex
	stopped bool
	last    T
	hasLast bool
}

func newWatcher[T any](load func(context.Context) (T, error), onChange func(T), interval time.Duration, logger *slog.Logger) *watcher[T] {
	return &watcher[T]{
		load:     load,
		onChange: onChange,
		interval: interval,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// start launches the loop. The first snapshot is delivered asynchronously.
func (w *watcher[T]) start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
}

func (w *watcher[T]) run(ctx context.Context) {
	defer w.stop()

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.kick:
			w.refresh(ctx)
		case <-tick:
			w.refresh(ctx)
		}
	}
}

// notify schedules a reload without blocking; pending kicks coalesce.
func (w *watcher[T]) notify() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *watcher[T]) refresh(ctx context.Context) {
	snap, err := w.safeLoad(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("subscription reload failed, keeping last snapshot", "err", err)
		}
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.hasLast && reflect.DeepEqual(w.last, snap) {
		return
	}
	w.last = snap
	w.hasLast = true
	w.deliver(snap)
}

func (w *watcher[T]) safeLoad(ctx context.Context) (snap T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("repository: snapshot loader panic: %v", r)
		}
	}()
	return w.load(ctx)
}

func (w *watcher[T]) deliver(snap T) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("subscription callback panic", "panic", r)
		}
	}()
	w.onChange(snap)
}

func (w *watcher[T]) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		if w.onStop != nil {
			w.onStop()
		}
	})
}

// hub maps change topics to the watchers interested in them so writes made
// through a store wake the affected subscriptions immediately.
type hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]func() // topic -> subID -> notify
}

func newHub() *hub {
	return &hub{topics: make(map[string]map[string]func())}
}

// add registers notify under every topic and returns a removal func.
func (h *hub) add(notify func(), topics ...string) func() {
	subID := uuid.NewString()

	h.mu.Lock()
	for _, topic := range topics {
		if _, ok := h.topics[topic]; !ok {
			h.topics[topic] = make(map[string]func())
		}
		h.topics[topic][subID] = notify
	}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, topic := range topics {
			subs, ok := h.topics[topic]
			if !ok {
				continue
			}
			delete(subs, subID)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
}

func (h *hub) publish(topics ...string) {
	h.mu.RLock()
	targets := make([]func(), 0, len(topics))
	for _, topic := range topics {
		for _, notify := range h.topics[topic] {
			targets = append(targets, notify)
		}
	}
	h.mu.RUnlock()

	for _, notify := range targets {
		notify()
	}
}

func (h *hub) subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func userTopic(userID string) string {
	return "user:" + userID
}

func conversationTopic(conversationID string) string {
	return "conv:" + conversationID
}

func participantTopics(conv domain.Conversation) []string {
	return []string{userTopic(conv.Participants[0]), userTopic(conv.Participants[1])}
}

// subscribe wires a watcher into the hub and starts it.
func subscribe[T any](ctx context.Context, h *hub, load func(context.Context) (T, error), onChange func(T), interval time.Duration, logger *slog.Logger, topics ...string) domain.Unsubscribe {
	w := newWatcher(load, onChange, interval, logger)
	w.onStop = h.add(w.notify, topics...)
	w.start(ctx)
	return w.stop
}
