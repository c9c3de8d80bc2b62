package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const traceKeyPrefix = "pdfproc:trace:"

type RedisTransport struct {
	rdb *redis.Client
}

func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{
		rdb: rdb,
	}
}

func (t *RedisTransport) GetMessageStream(id string) (MessageStream, error) {
	if len(id) == 0 {
		return nil, fmt.Errorf("invalid stream ID")
	}
	rs := &RedisStream{
		id:          id,
		lastRedisID: "0",
		rdb:         t.rdb,
	}
	return rs, nil
}

func (t *RedisTransport) SetTrace(ctx context.Context, trace *ProcessingTrace) error {
	key := traceKeyPrefix + trace.ID

	if err := t.rdb.HSet(ctx, key, trace).Err(); err != nil {
		return err
	}
	return t.rdb.Expire(ctx, key, TraceExpiry).Err()
}

func (t *RedisTransport) GetTrace(ctx context.Context, traceID string) (*ProcessingTrace, error) {
	key := traceKeyPrefix + traceID

	exists, err := t.rdb.Exists(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrTraceNotFound
	}

	var trace ProcessingTrace
	if err := t.rdb.HGetAll(ctx, key).Scan(&trace); err != nil {
		return nil, err
	}
	return &trace, nil
}

type RedisStream struct {
	id          string
	lastRedisID string

	rdb *redis.Client
}

func (s *RedisStream) Send(ctx context.Context, payload MessageStreamPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.id,
		ID:     "*",
		Values: map[string]any{
			"payload": string(payloadJSON),
		},
	}).Err()
	if err != nil {
		return err
	}

	return s.rdb.Expire(ctx, s.id, TraceExpiry).Err()
}

func (s *RedisStream) Recv(ctx context.Context) (*MessageStreamPayload, error) {
	rstreams, err := s.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{s.id, s.lastRedisID},
		Count:   1,
		Block:   0,
	}).Result()
	if err != nil {
		return nil, err
	}

	msg := rstreams[0].Messages[0]
	s.lastRedisID = msg.ID
	payloadJSON, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, fmt.Errorf("failed to read payload from stream message")
	}

	var payload MessageStreamPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("failed to deserialize stream message payload")
	}

	return &payload, nil
}

func (s *RedisStream) GetID() string {
	return s.id
}
