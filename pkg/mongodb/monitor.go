package mongodb

import (
	"context"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/metrics"
)

// commands that carry no collection and would only add noise
var ignoredCommands = map[string]bool{
	"hello":        true,
	"isMaster":     true,
	"ping":         true,
	"saslStart":    true,
	"saslContinue": true,
	"endSessions":  true,
	"buildInfo":    true,
	"killCursors":  true,
}

// NewCommandMonitor records every driver command as a MongoDB operation
// metric and a debug log line. Collection names are taken from the started
// event and matched to the finished event by request id.
func NewCommandMonitor(m *metrics.Metrics, logger *logging.Logger) *event.CommandMonitor {
	var collections sync.Map

	finish := func(ctx context.Context, evt event.CommandFinishedEvent, success bool) {
		if ignoredCommands[evt.CommandName] {
			return
		}
		collection := "-"
		if v, ok := collections.LoadAndDelete(evt.RequestID); ok {
			collection = v.(string)
		}
		if m != nil {
			m.RecordMongoDBOperation(collection, evt.CommandName, success, evt.Duration)
		}
		if logger != nil {
			logger.DatabaseQuery(ctx, collection, evt.CommandName, evt.Duration, success, 0)
		}
	}

	return &event.CommandMonitor{
		Started: func(_ context.Context, evt *event.CommandStartedEvent) {
			if ignoredCommands[evt.CommandName] {
				return
			}
			collections.Store(evt.RequestID, commandCollection(evt.Command))
		},
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			finish(ctx, evt.CommandFinishedEvent, true)
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			finish(ctx, evt.CommandFinishedEvent, false)
		},
	}
}

// commandCollection returns the collection a command targets. By wire
// protocol convention it is the string value of the first element.
func commandCollection(cmd bson.Raw) string {
	elems, err := cmd.Elements()
	if err != nil || len(elems) == 0 {
		return "-"
	}
	if name, ok := elems[0].Value().StringValueOK(); ok {
		return name
	}
	return "-"
}

// NewPoolMonitor keeps the open connection gauge current
func NewPoolMonitor(m *metrics.Metrics) *event.PoolMonitor {
	var open int64
	return &event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				m.SetMongoDBConnections(int(atomic.AddInt64(&open, 1)))
			case event.ConnectionClosed:
				m.SetMongoDBConnections(int(atomic.AddInt64(&open, -1)))
			}
		},
	}
}
