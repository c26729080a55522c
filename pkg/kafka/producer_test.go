package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
)

func TestTopicFor(t *testing.T) {
	assert.Equal(t, Topics.DispatchCrates, TopicFor("dispatch.crate.reconciled"))
	assert.Equal(t, Topics.DispatchCrates, TopicFor("dispatch.crate.registered"))
	assert.Equal(t, Topics.DispatchBatches, TopicFor("dispatch.batch.crate_added"))
	assert.Equal(t, Topics.DispatchBatches, TopicFor("dispatch.batch.departed"))
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, ParseBrokers(" k1:9092, ,k2:9092 "))
	assert.Nil(t, ParseBrokers(""))
}

func TestNewMessage(t *testing.T) {
	event := cloudevents.NewEventFactory(cloudevents.SourceDispatch).
		CreateEvent(context.Background(), "dispatch.batch.arrived", "batch/b1", map[string]string{"batchId": "b1"})
	event.BatchID = "b1"

	msg, err := NewMessage(event, map[string]string{"traceparent": "00-abc-def-01"})
	require.NoError(t, err)

	assert.Equal(t, "batch/b1", string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "dispatch.batch.arrived", headers["ce-type"])
	assert.Equal(t, cloudevents.SourceDispatch, headers["ce-source"])
	assert.Equal(t, event.ID, headers["ce-id"])
	assert.Equal(t, "b1", headers["ce-dispatchbatchid"])
	assert.Equal(t, "00-abc-def-01", headers["traceparent"])
	assert.NotContains(t, headers, "ce-dispatchcorrelationid")

	var decoded cloudevents.DispatchCloudEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
}
