package kafka

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_PublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "index.complete")

	err := p.Publish(context.Background(), Event{
		Key:   "42",
		Value: map[string]any{"document_id": 42},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)
	assert.Equal(t, "42", string(w.messages[0].Key))
	assert.JSONEq(t, `{"document_id":42}`, string(w.messages[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := newProducer(&fakeWriter{err: boom}, "index.complete")

	err := p.Publish(context.Background(), Event{Key: "1", Value: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "index.complete")
}

func TestProducer_PublishMarshalError(t *testing.T) {
	w := &fakeWriter{}
	err := newProducer(w, "t").Publish(context.Background(), Event{Key: "1", Value: make(chan int)})
	assert.Error(t, err)
	assert.Empty(t, w.messages)
}

func TestPing_NoBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = Ping(ctx, []string{addr})
	assert.ErrorIs(t, err, apperrors.ErrConnect)
}
