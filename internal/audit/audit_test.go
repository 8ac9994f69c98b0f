package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversAndStamps(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Fatalf("expected stamped event, got %+v", ev)
		}
		if ev.EventType != "login_success" {
			t.Fatalf("unexpected event type %q", ev.EventType)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	gate := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, gate)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink")
	}
	close(gate.gate)
	d.Close()
}

func TestDispatcherCloseDrains(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	d.Close()
	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered, got %d", got)
	}
	d.Emit(context.Background(), Event{EventType: "late"})
	if got := sink.count.Load(); got != 50 {
		t.Fatal("emit after close must be ignored")
	}
}

func TestMultiSinkAndLoggerSink(t *testing.T) {
	var jsonBuf, logBuf bytes.Buffer
	counter := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4},
		NewJSONWriterSink(&jsonBuf),
		NewLoggerSink(zerolog.New(&logBuf)),
		nil,
		counter,
	)
	d.Emit(context.Background(), Event{EventType: "login_failure", Identity: "alice", Reason: "invalid_credentials"})
	d.Close()

	var decoded Event
	if err := json.Unmarshal(bytes.TrimSpace(jsonBuf.Bytes()), &decoded); err != nil {
		t.Fatalf("json sink output invalid: %v", err)
	}
	if decoded.Reason != "invalid_credentials" {
		t.Fatalf("unexpected reason %q", decoded.Reason)
	}
	if !strings.Contains(logBuf.String(), `"level":"warn"`) || !strings.Contains(logBuf.String(), `"event":"login_failure"`) {
		t.Fatalf("unexpected log line %s", logBuf.String())
	}
	if counter.count.Load() != 1 {
		t.Fatal("expected fan-out to every sink")
	}
}
