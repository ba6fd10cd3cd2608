//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"rollcall/pkg/platform/audit"
	"rollcall/pkg/testutil/containers"
)

func TestKafkaPublisherDelivers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	broker := containers.NewRedpandaContainer(t)
	topic := "rollcall.audit.test"

	publisher, err := audit.NewKafkaPublisher([]string{broker.Broker}, topic, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sent := audit.Event{
		Action:  "person_checked_in",
		Subject: "u1",
		Detail:  "2024-03-15",
		At:      time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
	publisher.Emit(ctx, sent)
	require.NoError(t, publisher.Close(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "u1", string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, sent.Action, got.Action)
	require.Equal(t, sent.Detail, got.Detail)
	require.True(t, sent.At.Equal(got.At))
}
