package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aescanero/dago-libs/pkg/domain/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aescanero/dago-node-template/internal/config"
)

// fakeStream is an in-memory StreamClient. Writes fail with the context
// error when called on a canceled context, like the real client.
type fakeStream struct {
	messages chan redis.XMessage

	mu    sync.Mutex
	added map[string][]string
	acked []string
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		messages: make(chan redis.XMessage, 8),
		added:    make(map[string][]string),
	}
}

func (f *fakeStream) XGroupCreateMkStream(context.Context, string, string, string) *redis.StatusCmd {
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStream) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	select {
	case m := <-f.messages:
		return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: a.Streams[0], Messages: []redis.XMessage{m}}}, nil)
	case <-ctx.Done():
		return redis.NewXStreamSliceCmdResult(nil, ctx.Err())
	case <-time.After(a.Block):
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	}
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	if err := ctx.Err(); err != nil {
		return redis.NewStringResult("", err)
	}
	values := a.Values.(map[string]interface{})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added[a.Stream] = append(f.added[a.Stream], values["data"].(string))
	return redis.NewStringResult("1-0", nil)
}

func (f *fakeStream) XAck(ctx context.Context, _, _ string, ids ...string) *redis.IntCmd {
	if err := ctx.Err(); err != nil {
		return redis.NewIntResult(0, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStream) published(stream string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added[stream]...)
}

func (f *fakeStream) acknowledged() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

func testConfig() *config.Config {
	return &config.Config{
		WorkerID:      "template-test",
		StreamKey:     "template.work",
		ConsumerGroup: "template-workers",
		ResultStream:  "template.rendered",
		BlockTime:     10 * time.Millisecond,
		MaxRetries:    2,
	}
}

func message(id, body string) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]interface{}{"data": body}}
}

func TestHandleMessagePublishesResult(t *testing.T) {
	stream := newFakeStream()
	w := NewWorker(testConfig(), stream, newProcessor(t, nil, nil), zap.NewNop())

	w.handleMessage(message("1-0", `{"request_id":"r1","template":"Hi {{name}}","data":{"name":"Ann"}}`))

	results := stream.published("template.rendered")
	require.Len(t, results, 1)
	var result RenderResult
	require.NoError(t, json.Unmarshal([]byte(results[0]), &result))
	assert.Equal(t, "r1", result.RequestID)
	assert.Equal(t, "Hi Ann", result.Output)
	assert.Equal(t, []string{"1-0"}, stream.acknowledged())
}

func TestHandleMessageRetriesTransientFailures(t *testing.T) {
	var loads int32
	store := stateFunc(func(context.Context, string) (state.State, error) {
		atomic.AddInt32(&loads, 1)
		return nil, errors.New("connection reset")
	})
	core, logs := observer.New(zapcore.WarnLevel)
	stream := newFakeStream()
	w := NewWorker(testConfig(), stream, newProcessor(t, store, nil), zap.New(core))
	w.retryDelay = time.Millisecond

	w.handleMessage(message("2-0", `{"request_id":"r2","execution_id":"e1","template_name":"standard"}`))

	assert.Equal(t, int32(3), atomic.LoadInt32(&loads))
	assert.Equal(t, 2, logs.FilterMessage("retrying render request").Len())

	events := stream.published("template.rendered.errors")
	require.Len(t, events, 1)
	var event ErrorEvent
	require.NoError(t, json.Unmarshal([]byte(events[0]), &event))
	assert.Equal(t, "r2", event.RequestID)
	assert.Equal(t, "unavailable", event.Kind)
	assert.Equal(t, []string{"2-0"}, stream.acknowledged())
}

func TestHandleMessageTemplateErrorIsNotRetried(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	stream := newFakeStream()
	w := NewWorker(testConfig(), stream, newProcessor(t, nil, nil), zap.New(core))
	w.retryDelay = time.Millisecond

	w.handleMessage(message("3-0", `{"request_id":"r3","template":"{{#if ok}}open","data":{}}`))

	assert.Zero(t, logs.FilterMessage("retrying render request").Len())
	events := stream.published("template.rendered.errors")
	require.Len(t, events, 1)
	var event ErrorEvent
	require.NoError(t, json.Unmarshal([]byte(events[0]), &event))
	assert.Equal(t, "unclosed_section", event.Kind)
	assert.Empty(t, stream.published("template.rendered"))
	assert.Equal(t, []string{"3-0"}, stream.acknowledged())
}

func TestHandleMessageAcknowledgesMalformedRequests(t *testing.T) {
	stream := newFakeStream()
	w := NewWorker(testConfig(), stream, newProcessor(t, nil, nil), zap.NewNop())

	w.handleMessage(message("4-0", `{not json`))
	w.handleMessage(redis.XMessage{ID: "5-0", Values: map[string]interface{}{}})

	assert.Empty(t, stream.published("template.rendered"))
	assert.Equal(t, []string{"4-0", "5-0"}, stream.acknowledged())
}

func TestStopFinishesRequestInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	store := stateFunc(func(ctx context.Context, _ string) (state.State, error) {
		close(started)
		select {
		case <-release:
			return state.State{"subject": "drained"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	stream := newFakeStream()
	w := NewWorker(testConfig(), stream, newProcessor(t, store, nil), zap.NewNop())
	require.NoError(t, w.Start())

	stream.messages <- message("6-0", `{"request_id":"r6","execution_id":"e6","template_name":"standard"}`)
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop(5 * time.Second) }()
	require.Eventually(t, func() bool { return w.ctx.Err() != nil }, time.Second, time.Millisecond)
	close(release)

	require.NoError(t, <-stopped)
	results := stream.published("template.rendered")
	require.Len(t, results, 1)
	var result RenderResult
	require.NoError(t, json.Unmarshal([]byte(results[0]), &result))
	assert.Equal(t, "drained", result.Output)
	assert.Equal(t, []string{"6-0"}, stream.acknowledged())
}

func TestStopTimeoutCancelsRequestInFlight(t *testing.T) {
	started := make(chan struct{})
	store := stateFunc(func(ctx context.Context, _ string) (state.State, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	stream := newFakeStream()
	w := NewWorker(testConfig(), stream, newProcessor(t, store, nil), zap.NewNop())
	require.NoError(t, w.Start())

	stream.messages <- message("7-0", `{"request_id":"r7","execution_id":"e7","template_name":"standard"}`)
	<-started

	assert.Error(t, w.Stop(20*time.Millisecond))
	assert.Eventually(t, func() bool { return w.workCtx.Err() != nil }, time.Second, time.Millisecond)
}
