package services

import (
	"context"
	"sync"
	"time"

	"quiz-portal-go/database"
	"quiz-portal-go/logging"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// reconnectDelay is how long the watcher waits before re-opening a
// change stream that errored or closed.
const reconnectDelay = 5 * time.Second

// ChangeEvent represents a database change event
type ChangeEvent struct {
	Collection string `json:"collection"`
	Operation  string `json:"operation"`
	DocumentID string `json:"documentId,omitempty"`
}

type changeSubscriber struct {
	collection string
	fn         func(ChangeEvent)
}

// ChangeStreamWatcher watches MongoDB collections and fans change
// events out to registered subscribers. Callbacks run on the watcher
// goroutine of the collection that changed; subscribers must not block.
type ChangeStreamWatcher struct {
	db     *database.MongoDB
	logger *logging.Logger

	mu     sync.RWMutex
	subs   map[int]*changeSubscriber
	nextID int

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewChangeStreamWatcher creates a new change stream watcher
func NewChangeStreamWatcher(db *database.MongoDB) *ChangeStreamWatcher {
	return &ChangeStreamWatcher{
		db:     db,
		logger: logging.WithPrefix("ChangeStream"),
		subs:   make(map[int]*changeSubscriber),
	}
}

// Start begins watching the teams and toggles collections
func (w *ChangeStreamWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		w.logger.Warn("Already running")
		return
	}
	w.started = true

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	for _, collection := range []string{database.TeamsCollection, database.TogglesCollection} {
		w.wg.Add(1)
		go w.watchCollection(ctx, collection)
	}
}

// Stop closes the change streams and waits for the watch goroutines
func (w *ChangeStreamWatcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.logger.Info("Stopped")
}

// Subscribe registers a callback for changes to one collection and
// returns an unsubscribe function. The returned function is safe to
// call more than once and after the underlying stream has errored.
func (w *ChangeStreamWatcher) Subscribe(collection string, fn func(ChangeEvent)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = &changeSubscriber{collection: collection, fn: fn}
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
		})
	}
}

// watchCollection watches a single collection, reconnecting on error
func (w *ChangeStreamWatcher) watchCollection(ctx context.Context, collectionName string) {
	defer w.wg.Done()
	w.logger.Infof("Starting to watch %s collection for changes", collectionName)

	collection := w.db.GetCollection(collectionName)

	for {
		changeStream, err := collection.Watch(ctx, mongo.Pipeline{})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Errorf("Error creating change stream for %s: %v", collectionName, err)
			if !w.sleep(ctx, reconnectDelay) {
				return
			}
			continue
		}

		w.logger.Infof("Connected to %s collection", collectionName)

		for changeStream.Next(ctx) {
			var event bson.M
			if err := changeStream.Decode(&event); err != nil {
				w.logger.Errorf("Error decoding change event from %s: %v", collectionName, err)
				continue
			}
			w.dispatch(extractChangeInfo(event, collectionName))
		}

		if err := changeStream.Err(); err != nil && ctx.Err() == nil {
			w.logger.Errorf("Change stream error for %s: %v", collectionName, err)
		}
		changeStream.Close(context.Background())

		if ctx.Err() != nil {
			return
		}
		w.logger.Infof("Connection to %s closed, reconnecting in %s", collectionName, reconnectDelay)
		if !w.sleep(ctx, reconnectDelay) {
			return
		}
	}
}

func (w *ChangeStreamWatcher) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *ChangeStreamWatcher) dispatch(event ChangeEvent) {
	w.mu.RLock()
	targets := make([]func(ChangeEvent), 0, len(w.subs))
	for _, sub := range w.subs {
		if sub.collection == event.Collection {
			targets = append(targets, sub.fn)
		}
	}
	w.mu.RUnlock()

	for _, fn := range targets {
		fn(event)
	}
}

// extractChangeInfo pulls the operation type and document key out of a
// raw change stream event
func extractChangeInfo(event bson.M, collection string) ChangeEvent {
	changeEvent := ChangeEvent{Collection: collection}

	if operationType, ok := event["operationType"].(string); ok {
		changeEvent.Operation = operationType
	}
	if docKey, ok := event["documentKey"].(bson.M); ok {
		if id, ok := docKey["_id"].(string); ok {
			changeEvent.DocumentID = id
		}
	}
	return changeEvent
}
