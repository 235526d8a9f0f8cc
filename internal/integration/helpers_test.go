//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker for the duration of the test and
// returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("hazard-risk-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

var observedAt = time.Date(2024, time.May, 2, 12, 0, 0, 0, time.UTC)

// floodSignal builds a payload the rulestest fixture can score.
func floodSignal(t *testing.T, location string, precipitation float64) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.LocationSignal{
		LocationID:   location,
		ObservedAt:   observedAt,
		HorizonHours: 72,
		Measurements: map[string]domain.Measurement{
			"precipitation_24h": {Value: precipitation, Unit: "mm"},
			"soil_saturation":   {Value: 0.9, Unit: "fraction"},
			"elevation":         {Value: 3, Unit: "m"},
		},
		Hazards: []domain.HazardType{domain.HazardFlood},
	})
	require.NoError(t, err)
	return payload
}

// assessedMessage holds a deserialized message read from the sink topic.
type assessedMessage struct {
	Bundle  domain.RiskBundle
	Key     string
	Headers map[string]string
}

// readAssessed reads a single message from the sink consumer and deserializes it.
func readAssessed(ctx context.Context, t *testing.T, consumer *kafkago.Reader) assessedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var b domain.RiskBundle
	require.NoError(t, json.Unmarshal(msg.Value, &b), "unmarshal sink message")

	return assessedMessage{Bundle: b, Key: string(msg.Key), Headers: headers}
}
