package events

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"portal/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthEvent_Key(t *testing.T) {
	e := NewAuthEvent(LoginFailed, "ada@example.com")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "ada@example.com", e.Key())

	e.UserID = "u-1"
	assert.Equal(t, "u-1", e.Key())
}

func TestBuildMessage(t *testing.T) {
	e := NewAuthEvent(LoginSucceeded, "ada@example.com")
	e.UserID = "u-1"

	msg, err := buildMessage("auth-events", e)
	require.NoError(t, err)

	assert.Equal(t, "auth-events", *msg.TopicPartition.Topic)
	assert.Equal(t, []byte("u-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "auth.login.succeeded", string(msg.Headers[0].Value))

	var decoded AuthEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.NotContains(t, string(msg.Value), "password")
}

func TestKafkaConfig(t *testing.T) {
	_, err := NewKafkaConfig(" ", "")
	assert.Error(t, err)

	cfg, err := NewKafkaConfig("b1:9092, b2:9092,", "")
	require.NoError(t, err)
	assert.Equal(t, "portal-auth-events", cfg.Topic)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.BrokersList())
	assert.Equal(t, "all", cfg.Acks)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(logger.Build(&buf, logger.Options{Format: logger.FormatJSON}))

	require.NoError(t, p.Publish(context.Background(), NewAuthEvent(LoggedOut, "ada@example.com")))
	p.Close()

	assert.Contains(t, buf.String(), `"type":"auth.logout"`)
}
