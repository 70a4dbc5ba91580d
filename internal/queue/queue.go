package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"checkin/internal/attendance"
)

// TypeCheckin marks a message carrying a recorded attendance record.
const TypeCheckin = "checkin"

// Message represents work to be processed.
type Message struct {
	Type string
	Body []byte
}

// NewCheckin wraps a recorded check-in for the worker.
func NewCheckin(rec attendance.Record) (Message, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return Message{}, fmt.Errorf("encode checkin: %w", err)
	}
	return Message{Type: TypeCheckin, Body: body}, nil
}

// Checkin decodes the record carried by a checkin message.
func (m Message) Checkin() (attendance.Record, error) {
	if m.Type != TypeCheckin {
		return attendance.Record{}, fmt.Errorf("message type %q is not %q", m.Type, TypeCheckin)
	}
	var rec attendance.Record
	if err := json.Unmarshal(m.Body, &rec); err != nil {
		return attendance.Record{}, fmt.Errorf("decode checkin: %w", err)
	}
	return rec, nil
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers. Once ctx is done the messages still
// buffered are delivered before the channel closes, so callers must read
// until it closes.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				out <- msg
			case <-ctx.Done():
				for {
					select {
					case msg := <-q.ch:
						out <- msg
					default:
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "checkin:events"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	return q.client.LPush(ctx, q.key, serialize(msg)).Err()
}

// Consume streams messages using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					log.Printf("queue: brpop %s: %v", q.key, err)
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			select {
			case out <- deserialize(res[1]):
			case <-ctx.Done():
				q.requeue(res[1])
				return
			}
		}
	}()
	return out, nil
}

// requeue puts a popped but undelivered message back at the consuming end.
func (q *RedisQueue) requeue(raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		log.Printf("queue: requeue to %s failed, message lost: %v", q.key, err)
	}
}

// serialize stores messages as Type|Body.
func serialize(msg Message) string {
	return msg.Type + "|" + string(msg.Body)
}

func deserialize(s string) Message {
	typ, body, ok := strings.Cut(s, "|")
	if !ok {
		return Message{Body: []byte(s)}
	}
	return Message{Type: typ, Body: []byte(body)}
}
