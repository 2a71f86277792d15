package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type sliceReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	writer := &MockWriter{}
	producer := NewProducerWithWriter(writer, logger)

	var written []kafka.Message
	writer.On("WriteMessages", ctx, mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(1).([]kafka.Message)
	}).Return(nil).Once()

	err := producer.Publish(ctx, "flow-events", "order-1", FlowEvent{Type: EventOrderCreated, OrderID: "order-1"})
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, "flow-events", written[0].Topic)
	assert.Equal(t, []byte("order-1"), written[0].Key)

	var decoded FlowEvent
	require.NoError(t, json.Unmarshal(written[0].Value, &decoded))
	assert.Equal(t, EventOrderCreated, decoded.Type)
	writer.AssertExpectations(t)
}

func TestProducer_PublishWriteError(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	writer := &MockWriter{}
	producer := NewProducerWithWriter(writer, logger)

	writer.On("WriteMessages", ctx, mock.Anything).Return(errors.New("broker down")).Once()

	err := producer.Publish(ctx, "t", "k", map[string]string{"a": "b"})
	assert.ErrorContains(t, err, "broker down")
}

func TestProducer_PublishMarshalError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	producer := NewProducerWithWriter(&MockWriter{}, logger)

	err := producer.Publish(context.Background(), "t", "k", make(chan int))
	assert.ErrorContains(t, err, "failed to marshal payload")
}

func TestEmitter_MirrorsToNotifications(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	publisher := &MockPublisher{}
	emitter := NewEmitter(publisher, "flow-events", "notifications", logger)
	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	emitter.now = func() time.Time { return fixed }

	var published []FlowEvent
	record := func(args mock.Arguments) { published = append(published, args.Get(3).(FlowEvent)) }
	publisher.On("Publish", ctx, "flow-events", "order-1", mock.Anything).Run(record).Return(nil).Once()
	publisher.On("Publish", ctx, "notifications", "order-1", mock.Anything).Run(record).Return(nil).Once()

	emitter.Emit(ctx, FlowEvent{Type: EventPaymentConfirmed, OrderID: "order-1", Amount: decimal.RequireFromString("812.70")})
	publisher.AssertExpectations(t)

	require.Len(t, published, 2)
	assert.NotEmpty(t, published[0].EventID)
	assert.Equal(t, fixed, published[0].OccurredAt)
	assert.Equal(t, published[0], published[1])
}

func TestEmitter_EventIDPerEmission(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	publisher := &MockPublisher{}
	emitter := NewEmitter(publisher, "flow-events", "", logger)

	var ids []string
	publisher.On("Publish", ctx, "flow-events", "order-1", mock.Anything).Run(func(args mock.Arguments) {
		ids = append(ids, args.Get(3).(FlowEvent).EventID)
	}).Return(nil)

	declined := FlowEvent{Type: EventPaymentFailed, OrderID: "order-1", IdempotencyKey: "key-1"}
	emitter.Emit(ctx, declined)
	emitter.Emit(ctx, declined)
	preset := declined
	preset.EventID = "ev-fixed"
	emitter.Emit(ctx, preset)

	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, "ev-fixed", ids[2])
}

func TestProducer_CheckConnection(t *testing.T) {
	logger, _ := test.NewNullLogger()

	err := NewProducerWithWriter(&MockWriter{}, logger).CheckConnection(context.Background())
	assert.EqualError(t, err, "no kafka brokers configured")

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	producer := NewProducer([]string{addr}, logger)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.ErrorContains(t, producer.CheckConnection(ctx), "failed to connect to Kafka")
}

func TestEmitter_PublishFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()
	publisher := &MockPublisher{}
	emitter := NewEmitter(publisher, "flow-events", "notifications", logger)

	publisher.On("Publish", ctx, "flow-events", "order-1", mock.Anything).Return(errors.New("down")).Once()

	emitter.Emit(ctx, FlowEvent{Type: EventOrderCreated, OrderID: "order-1"})

	publisher.AssertExpectations(t)
	publisher.AssertNotCalled(t, "Publish", ctx, "notifications", "order-1", mock.Anything)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "failed to publish flow event", hook.LastEntry().Message)
}

func TestEmitter_Disabled(t *testing.T) {
	var emitter *Emitter
	emitter.Emit(context.Background(), FlowEvent{})

	logger, _ := test.NewNullLogger()
	NewEmitter(nil, "flow-events", "", logger).Emit(context.Background(), FlowEvent{})
}

func TestConsumer_ConsumeEventsSkipsGarbage(t *testing.T) {
	logger, hook := test.NewNullLogger()
	good, _ := json.Marshal(FlowEvent{Type: EventPaymentFailed, OrderID: "order-2"})
	reader := &sliceReader{msgs: []kafka.Message{
		{Topic: "flow-events", Value: []byte("{nope")},
		{Topic: "flow-events", Value: good},
	}}
	consumer := NewConsumerWithReader(reader, logger)

	var seen []FlowEvent
	err := consumer.ConsumeEvents(context.Background(), func(_ context.Context, e FlowEvent) error {
		seen = append(seen, e)
		return nil
	})

	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, seen, 1)
	assert.Equal(t, "order-2", seen[0].OrderID)
	assert.Len(t, hook.AllEntries(), 1)
	assert.Len(t, reader.committed, 2)

	require.NoError(t, consumer.Close())
	assert.True(t, reader.closed)
}

func TestConsumer_HandlerErrorStops(t *testing.T) {
	logger, _ := test.NewNullLogger()
	data, _ := json.Marshal(FlowEvent{OrderID: "o"})
	reader := &sliceReader{msgs: []kafka.Message{{Value: data}, {Value: data}}}
	consumer := NewConsumerWithReader(reader, logger)

	calls := 0
	boom := errors.New("ledger down")
	err := consumer.ConsumeEvents(context.Background(), func(context.Context, FlowEvent) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, reader.committed)
}
