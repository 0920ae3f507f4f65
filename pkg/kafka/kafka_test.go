package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/resilience"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) state() ([]int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...), r.closed
}

func runConsumer(t *testing.T, c *Consumer, r *fakeReader, commits int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		committed, _ := r.state()
		return len(committed) == commits
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_RetriesThenSkipsFailingMessages(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("ok")},
		{Offset: 2, Value: []byte("fail")},
		{Offset: 3, Value: []byte("ok")},
	}}
	var (
		mu   sync.Mutex
		seen []string
	)
	c := NewConsumerWithReader(r, "corpus-rebuild", func(ctx context.Context, key, value []byte) error {
		mu.Lock()
		seen = append(seen, string(value))
		mu.Unlock()
		if string(value) == "fail" {
			return errors.New("reload failed")
		}
		return nil
	}, WithRetry(resilience.Backoff{Attempts: 3, Base: time.Millisecond}))

	runConsumer(t, c, r, 3)

	committed, closed := r.state()
	assert.Equal(t, []int64{1, 2, 3}, committed)
	assert.True(t, closed)
	mu.Lock()
	assert.Equal(t, []string{"ok", "fail", "fail", "fail", "ok"}, seen)
	mu.Unlock()
	assert.Equal(t, int64(1), c.Dropped())
}

func TestConsumer_PermanentErrorsAreNotRetried(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Offset: 7, Value: []byte("{")}}}
	var calls atomic.Int32
	c := NewConsumerWithReader(r, "search-analytics", func(ctx context.Context, key, value []byte) error {
		calls.Add(1)
		return resilience.Permanent(errors.New("invalid documents"))
	}, WithRetry(resilience.Backoff{Attempts: 5, Base: time.Millisecond}))

	runConsumer(t, c, r, 1)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), c.Dropped())
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_PublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "search-analytics")

	require.NoError(t, p.Publish(context.Background(), Event{Key: "k", Value: map[string]int{"hits": 3}}))
	require.NoError(t, p.PublishBatch(context.Background(), []Event{{Key: "a", Value: 1}, {Key: "b", Type: "search", Value: "x"}}))
	require.NoError(t, p.PublishBatch(context.Background(), nil))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "k", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"hits":3}`, string(w.msgs[0].Value))
	assert.Equal(t, `"x"`, string(w.msgs[2].Value))
	assert.Empty(t, w.msgs[0].Headers)
	require.Len(t, w.msgs[2].Headers, 1)
	assert.Equal(t, "search", string(w.msgs[2].Headers[0].Value))
}

func TestProducer_Errors(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, "t")
	err := p.Publish(context.Background(), Event{Key: "k", Value: 1})
	assert.ErrorContains(t, err, "broker down")

	err = p.Publish(context.Background(), Event{Key: "k", Value: func() {}})
	assert.ErrorContains(t, err, "marshaling event value")
}

func TestDecodeJSON(t *testing.T) {
	type msg struct {
		Reason string `json:"reason"`
	}
	m, err := DecodeJSON[msg]([]byte(`{"reason":"corpus updated"}`))
	require.NoError(t, err)
	assert.Equal(t, "corpus updated", m.Reason)

	_, err = DecodeJSON[msg]([]byte(`{`))
	assert.Error(t, err)
}
