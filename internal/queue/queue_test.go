package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"checkin/internal/attendance"
)

func testRecord() attendance.Record {
	return attendance.Record{
		ID:         "id-1",
		Identifier: "A12345",
		Session:    "Lunch Break",
		Timestamp:  time.Date(2025, 3, 14, 12, 45, 0, 0, time.UTC),
	}
}

func requireRecord(t *testing.T, got attendance.Record) {
	t.Helper()
	want := testRecord()
	if got.ID != want.ID || got.Identifier != want.Identifier || got.Session != want.Session || !got.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("record = %+v, want %+v", got, want)
	}
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestCheckinMessage(t *testing.T) {
	msg, err := NewCheckin(testRecord())
	if err != nil {
		t.Fatalf("NewCheckin: %v", err)
	}
	got, err := msg.Checkin()
	if err != nil {
		t.Fatalf("Checkin: %v", err)
	}
	requireRecord(t, got)
	if _, err := (Message{Type: "other"}).Checkin(); err == nil {
		t.Fatal("expected error for non-checkin message")
	}
}

func TestDeserializeKeepsPipesInBody(t *testing.T) {
	msg := deserialize(serialize(Message{Type: TypeCheckin, Body: []byte(`{"a":"x|y"}`)}))
	if msg.Type != TypeCheckin || string(msg.Body) != `{"a":"x|y"}` {
		t.Fatalf("message = %q %q", msg.Type, msg.Body)
	}
	if raw := deserialize("no-separator"); raw.Type != "" || string(raw.Body) != "no-separator" {
		t.Fatalf("raw = %+v", raw)
	}
}

func TestInMemoryQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(4)
	msg, _ := NewCheckin(testRecord())
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got := receive(t, ch); got.Type != TypeCheckin {
		t.Fatalf("type = %q", got.Type)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	q := NewRedisQueue(client, "")
	msg, _ := NewCheckin(testRecord())
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	rec, err := receive(t, ch).Checkin()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	requireRecord(t, rec)
}

func TestInMemoryDeliversBufferedAfterCancel(t *testing.T) {
	q := NewInMemory(32)
	for i := 0; i < 20; i++ {
		msg, _ := NewCheckin(testRecord())
		if err := q.Publish(context.Background(), msg); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	got := 0
	for range ch {
		got++
	}
	if got != 20 {
		t.Fatalf("delivered %d of 20 buffered messages", got)
	}
}

func TestRedisQueueRequeuesUndelivered(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(client, "events")
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	msg, _ := NewCheckin(testRecord())
	if err := q.Publish(context.Background(), msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Wait for BRPOP to take the message while nobody reads the channel.
	deadline := time.Now().Add(2 * time.Second)
	for mr.Exists("events") {
		if time.Now().After(deadline) {
			t.Fatal("message never popped")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	delivered := 0
	for range ch {
		delivered++
	}
	left, err := client.LLen(context.Background(), "events").Result()
	if err != nil {
		t.Fatalf("llen: %v", err)
	}
	if delivered+int(left) != 1 {
		t.Fatalf("delivered = %d, left in list = %d; want exactly one copy", delivered, left)
	}
}
