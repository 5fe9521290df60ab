package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/bracket-worker/client"
	"github.com/radieske/intramural-predictions/internal/shared/kafka"
	"github.com/radieske/intramural-predictions/pkg/contracts/events"
)

type fakeBracket struct {
	advanced  []client.Advance
	retracted []client.Retract
	err       error
	failures  int // quantas chamadas falham antes de responder
}

func (f *fakeBracket) Advance(_ context.Context, a client.Advance) error {
	if f.err != nil {
		return f.err
	}
	if f.failures > 0 {
		f.failures--
		return errors.New("bracket unavailable")
	}
	f.advanced = append(f.advanced, a)
	return nil
}

func (f *fakeBracket) Retract(_ context.Context, r client.Retract) error {
	if f.err != nil {
		return f.err
	}
	f.retracted = append(f.retracted, r)
	return nil
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

// fakeFetcher entrega as mensagens em ordem e depois bloqueia até o cancelamento
type fakeFetcher struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	done      chan struct{}
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		m := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	close(f.done)
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func message(t *testing.T, offset int64, e events.MatchSettled) kafka.Message {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Key: []byte(e.MatchID), Value: b, Offset: offset}
}

func TestHandle(t *testing.T) {
	settled := events.MatchSettled{Type: events.MatchSettledType, MatchID: "qf1", NextMatchID: "sf1", WinnerTeam: "owls", UndoToken: "tok"}
	undone := events.MatchSettled{Type: events.MatchUndoneType, MatchID: "qf1", NextMatchID: "sf1", UndoToken: "tok"}
	draw := events.MatchSettled{Type: events.MatchSettledType, MatchID: "qf2", NextMatchID: "sf1"}
	regular := events.MatchSettled{Type: events.MatchSettledType, MatchID: "r1", WinnerTeam: "owls"}

	tests := []struct {
		name         string
		ev           *events.MatchSettled
		raw          []byte
		bracketErr   error
		wantAdvanced int
		wantRetract  int
		wantDLQ      int
	}{
		{name: "settled advances winner", ev: &settled, wantAdvanced: 1},
		{name: "undone retracts", ev: &undone, wantRetract: 1},
		{name: "draw is skipped", ev: &draw},
		{name: "no bracket is skipped", ev: &regular},
		{name: "bracket failure goes to dlq", ev: &settled, bracketErr: errors.New("bracket down"), wantDLQ: 1},
		{name: "garbage goes to dlq", raw: []byte("{oops"), wantDLQ: 1},
		{name: "unknown type goes to dlq", ev: &events.MatchSettled{Type: "VOIDED", MatchID: "x", NextMatchID: "y"}, wantDLQ: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, dlq := &fakeBracket{err: tt.bracketErr}, &fakeWriter{}
			c := New(nil, b, dlq, zap.NewNop(), nil)

			msg := kafka.Message{Value: tt.raw}
			if tt.ev != nil {
				msg = message(t, 1, *tt.ev)
			}
			if err := c.Handle(context.Background(), msg); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if len(b.advanced) != tt.wantAdvanced || len(b.retracted) != tt.wantRetract || len(dlq.msgs) != tt.wantDLQ {
				t.Errorf("advanced=%d retracted=%d dlq=%d", len(b.advanced), len(b.retracted), len(dlq.msgs))
			}
		})
	}
}

func TestHandleDLQFailureKeepsMessage(t *testing.T) {
	c := New(nil, &fakeBracket{err: errors.New("bracket down")}, &fakeWriter{err: errors.New("broker down")}, zap.NewNop(), nil)
	msg := message(t, 7, events.MatchSettled{Type: events.MatchSettledType, MatchID: "qf1", NextMatchID: "sf1", WinnerTeam: "owls"})
	if err := c.Handle(context.Background(), msg); err == nil {
		t.Fatal("expected error when dlq rejects the message")
	}
}

func TestDLQPayload(t *testing.T) {
	dlq := &fakeWriter{}
	c := New(nil, &fakeBracket{err: errors.New("bracket down")}, dlq, zap.NewNop(), nil)
	msg := message(t, 42, events.MatchSettled{Type: events.MatchUndoneType, MatchID: "qf1", NextMatchID: "sf1"})
	if err := c.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	var got DLQMessage
	if err := json.Unmarshal(dlq.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.Offset != 42 || got.Reason != "bracket down" || string(dlq.msgs[0].Key) != "qf1" {
		t.Errorf("dlq message = %+v key %q", got, dlq.msgs[0].Key)
	}
	var original events.MatchSettled
	if err := json.Unmarshal(got.Value, &original); err != nil || original.MatchID != "qf1" {
		t.Errorf("original payload = %s, %v", got.Value, err)
	}
}

func TestRunCommitsAfterHandling(t *testing.T) {
	src := &fakeFetcher{done: make(chan struct{})}
	src.queue = []kafka.Message{
		message(t, 1, events.MatchSettled{Type: events.MatchSettledType, MatchID: "qf1", NextMatchID: "sf1", WinnerTeam: "owls"}),
		message(t, 2, events.MatchSettled{Type: events.MatchUndoneType, MatchID: "qf1", NextMatchID: "sf1"}),
	}
	b := &fakeBracket{}
	c := New(src, b, nil, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	select {
	case <-src.done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.committed) != 2 || src.committed[0] != 1 || src.committed[1] != 2 {
		t.Errorf("committed = %v", src.committed)
	}
	if len(b.advanced) != 1 || len(b.retracted) != 1 {
		t.Errorf("advanced=%v retracted=%v", b.advanced, b.retracted)
	}
}

func TestHandleWithoutDLQKeepsMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  kafka.Message
	}{
		{"bracket failure", message(t, 3, events.MatchSettled{Type: events.MatchSettledType, MatchID: "qf1", NextMatchID: "sf1", WinnerTeam: "owls"})},
		{"garbage", kafka.Message{Value: []byte("{oops"), Offset: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(nil, &fakeBracket{err: errors.New("bracket down")}, nil, zap.NewNop(), nil)
			if err := c.Handle(context.Background(), tt.msg); err == nil {
				t.Fatal("expected error so the offset is not committed")
			}
		})
	}
}

func TestRunRetriesUnhandledMessage(t *testing.T) {
	src := &fakeFetcher{done: make(chan struct{})}
	src.queue = []kafka.Message{
		message(t, 1, events.MatchSettled{Type: events.MatchSettledType, MatchID: "qf1", NextMatchID: "sf1", WinnerTeam: "owls"}),
		message(t, 2, events.MatchSettled{Type: events.MatchSettledType, MatchID: "qf2", NextMatchID: "sf1", WinnerTeam: "bears"}),
	}
	b := &fakeBracket{failures: 2}
	c := New(src, b, nil, zap.NewNop(), nil)
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	select {
	case <-src.done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.committed) != 2 || src.committed[0] != 1 || src.committed[1] != 2 {
		t.Errorf("committed = %v", src.committed)
	}
	if len(b.advanced) != 2 || b.advanced[0].MatchID != "qf1" || b.advanced[1].MatchID != "qf2" {
		t.Errorf("advanced = %v", b.advanced)
	}
}
