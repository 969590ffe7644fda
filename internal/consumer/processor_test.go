package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	messages    []kafka.Message
	index       int
	commits     []kafka.Message
	afterDrain  func() // called when all messages have been fetched
	fetchErr    error
	fetchErrSet bool
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.fetchErrSet {
		r.fetchErrSet = false
		return kafka.Message{}, r.fetchErr
	}
	if r.index >= len(r.messages) {
		if r.afterDrain != nil {
			r.afterDrain()
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	events []ChangeEvent
	err    error
}

func (h *stubHandler) Handle(ctx context.Context, event ChangeEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func frame(t *testing.T, schemaID int, row any) []byte {
	t.Helper()
	payload, err := json.Marshal(row)
	require.NoError(t, err)
	value := make([]byte, 5, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	return append(value, payload...)
}

func changeMessage(t *testing.T, eventType, userID string, row any) kafka.Message {
	t.Helper()
	return kafka.Message{
		Topic:     "biastrack.behavior_entries",
		Partition: 0,
		Offset:    42,
		Time:      time.Date(2025, time.November, 3, 10, 0, 0, 0, time.UTC),
		Value:     frame(t, 7, row),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "record_kind", Value: []byte("behavior_entry")},
			{Key: "user_id", Value: []byte(userID)},
		},
	}
}

func runUntilDrained(t *testing.T, reader *stubReader, handler Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	reader.afterDrain = cancel
	defer cancel()

	proc := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))
	err := proc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestProcessorDecodesAndCommits(t *testing.T) {
	row := map[string]any{"id": "b-1", "user_id": "u-1"}
	reader := &stubReader{messages: []kafka.Message{changeMessage(t, "behavior_entry.created", "u-1", row)}}
	handler := &stubHandler{}

	runUntilDrained(t, reader, handler)

	require.Len(t, handler.events, 1)
	event := handler.events[0]
	require.Equal(t, "behavior_entry.created", event.EventType)
	require.Equal(t, "behavior_entry", event.RecordKind)
	require.Equal(t, "u-1", event.UserID)
	require.Equal(t, 7, event.SchemaID)
	require.Equal(t, int64(42), event.Offset)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Row, &decoded))
	require.Equal(t, "b-1", decoded["id"])

	require.Len(t, reader.commits, 1)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	row := map[string]any{"id": "b-1"}
	reader := &stubReader{messages: []kafka.Message{changeMessage(t, "behavior_entry.created", "u-1", row)}}
	handler := &stubHandler{err: errors.New("downstream unavailable")}

	runUntilDrained(t, reader, handler)

	require.Len(t, handler.events, 1)
	require.Empty(t, reader.commits)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{{
		Topic: "biastrack.behavior_entries",
		Value: []byte{0x01, 0x02}, // too short for the schema frame
	}}}
	handler := &stubHandler{}

	runUntilDrained(t, reader, handler)

	require.Empty(t, handler.events)
	require.Len(t, reader.commits, 1)
}

func TestProcessorRejectsMissingEventTypeHeader(t *testing.T) {
	msg := changeMessage(t, "behavior_entry.created", "u-1", map[string]any{"id": "b-1"})
	msg.Headers = msg.Headers[1:] // drop event_type

	reader := &stubReader{messages: []kafka.Message{msg}}
	handler := &stubHandler{}

	runUntilDrained(t, reader, handler)

	require.Empty(t, handler.events)
	require.Len(t, reader.commits, 1)
}

func TestProcessorContinuesAfterFetchError(t *testing.T) {
	row := map[string]any{"id": "b-1"}
	reader := &stubReader{
		messages:    []kafka.Message{changeMessage(t, "behavior_entry.created", "u-1", row)},
		fetchErr:    errors.New("broker hiccup"),
		fetchErrSet: true,
	}
	handler := &stubHandler{}

	runUntilDrained(t, reader, handler)

	require.Len(t, handler.events, 1)
}
