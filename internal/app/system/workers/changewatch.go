// internal/app/system/workers/changewatch.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/donorlink/internal/app/system/live"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// watchedCollections maps a collection to the hub topic its changes wake.
var watchedCollections = map[string]string{
	"camp_news": live.TopicNews,
	"ngos":      live.TopicNGOs,
	"chats":     live.TopicChats,
	"messages":  live.TopicMessages,
}

// ChangeWatcher forwards database changes to the live hub so writes made by
// other service instances reach this instance's subscribers.
//
// It tails a MongoDB change stream on the database. Change streams need a
// replica set; when the stream cannot be opened, or fails later, the
// watcher switches to waking every subscription on a fixed interval for
// the rest of the process lifetime.
type ChangeWatcher struct {
	db           *mongo.Database
	hub          *live.Hub
	log          *zap.Logger
	pollInterval time.Duration
	useStreams   bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewChangeWatcher creates a change watcher. With useStreams false, or a
// nil db, it only polls.
//
// Parameters:
//   - db: the application database
//   - hub: the hub to notify
//   - logger: zap logger for logging
//   - pollInterval: how often to wake subscriptions when polling (e.g., 5 seconds)
//   - useStreams: try change streams before polling
func NewChangeWatcher(db *mongo.Database, hub *live.Hub, logger *zap.Logger, pollInterval time.Duration, useStreams bool) *ChangeWatcher {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &ChangeWatcher{
		db:           db,
		hub:          hub,
		log:          logger,
		pollInterval: pollInterval,
		useStreams:   useStreams && db != nil,
		stopCh:       make(chan struct{}),
	}
}

// Start begins watching in the background.
func (w *ChangeWatcher) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("change watcher started",
		zap.Bool("change_streams", w.useStreams),
		zap.Duration("poll_interval", w.pollInterval))
}

// Stop signals the watcher to stop and waits for it to finish.
func (w *ChangeWatcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("change watcher stopped")
}

func (w *ChangeWatcher) run() {
	defer w.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.stopCh
		cancel()
	}()

	if w.useStreams {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("change stream unavailable; falling back to polling",
			zap.Error(err),
			zap.Duration("poll_interval", w.pollInterval))
	}
	w.poll(ctx)
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	NS            struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
	FullDocument bson.Raw `bson:"fullDocument"`
}

func (w *ChangeWatcher) watch(ctx context.Context) error {
	colls := make(bson.A, 0, len(watchedCollections))
	for c := range watchedCollections {
		colls = append(colls, c)
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"ns.coll":       bson.M{"$in": colls},
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	cs, err := w.db.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer cs.Close(context.Background())

	for cs.Next(ctx) {
		var ev changeEvent
		if err := cs.Decode(&ev); err != nil {
			w.log.Warn("failed to decode change event", zap.Error(err))
			continue
		}
		w.hub.Notify(topicsFor(ev.NS.Coll, ev.FullDocument)...)
	}
	return cs.Err()
}

func (w *ChangeWatcher) poll(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.hub.Count() > 0 {
				w.hub.NotifyAll()
			}
		}
	}
}

// topicsFor returns the topics woken by a change to doc in coll: the
// collection topic plus, for chats and messages, the per-user and per-chat
// keys that subscriptions listen on.
func topicsFor(coll string, doc bson.Raw) []string {
	base, ok := watchedCollections[coll]
	if !ok {
		return nil
	}
	topics := []string{base}
	if len(doc) == 0 {
		return topics
	}

	switch coll {
	case "messages":
		if chatID, ok := doc.Lookup("chat_id").StringValueOK(); ok && chatID != "" {
			topics = append(topics, live.Key(live.TopicMessages, chatID))
		}
	case "chats":
		if arr, ok := doc.Lookup("participants").ArrayOK(); ok {
			vals, _ := arr.Values()
			for _, v := range vals {
				if id, ok := v.StringValueOK(); ok && id != "" {
					topics = append(topics, live.Key(live.TopicChats, id))
				}
			}
		}
	}
	return topics
}
