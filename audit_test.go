package sessionguard

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: "refresh_success", Success: true})

	select {
	case event := <-sink.Events():
		if event.EventType != "refresh_success" {
			t.Fatalf("expected refresh_success, got %s", event.EventType)
		}
	case <-time.After(time.Second):
		t.Fatal("event never reached the sink")
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NewChannelSink(1))
	if d != nil {
		t.Fatal("disabled audit must not start a dispatcher")
	}
	// Nil-safe surface.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDropsUnderBackpressure(t *testing.T) {
	// A sink that never consumes: the run loop stalls on the first event and
	// the buffer fills behind it.
	block := make(chan struct{})
	sink := blockingSink{gate: block}

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "submission_success"})
	}

	dropped := d.Dropped()

	// Unblock the sink before Close so the drain can finish.
	close(block)
	d.Close()

	if dropped == 0 {
		t.Fatal("expected dropped events under backpressure")
	}
}

type blockingSink struct {
	gate chan struct{}
}

func (s blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.gate
}

func TestDispatcherCloseDrains(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: false}, sink)

	for i := 0; i < 4; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "refresh_success"})
	}
	d.Close()

	delivered := 0
	for {
		select {
		case <-sink.Events():
			delivered++
			if delivered == 4 {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("expected 4 drained events, got %d", delivered)
		}
	}
}

func TestDispatcherEmitAfterClose(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, NoOpSink{})
	d.Close()
	// Must not panic or block.
	d.Emit(context.Background(), AuditEvent{EventType: "refresh_success"})
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		EventType: "duplicate_rejected",
		Error:     "duplicate submission",
	})
	sink.Emit(context.Background(), AuditEvent{EventType: "submission_success", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if event.EventType != "duplicate_rejected" {
		t.Fatalf("expected duplicate_rejected, got %s", event.EventType)
	}
}

func TestGuardEmitsAuditEvents(t *testing.T) {
	sink := NewChannelSink(64)
	provider := &stubProvider{session: sessionValidFor(time.Hour)}

	cfg := testConfig()
	cfg.Audit = AuditConfig{Enabled: true, BufferSize: 64, DropIfFull: false}

	guard := newTestGuard(t, provider, func(b *Builder) {
		b.WithConfig(cfg).WithAuditSink(sink)
	})

	payload := testPayload()
	guard.RecordSubmission(context.Background(), payload, "existing-1")

	op := func(context.Context) (*SubmissionResult, error) {
		t.Fatal("operation must not run for a duplicate")
		return nil, nil
	}
	if _, err := guard.Run(context.Background(), payload, op); err == nil {
		t.Fatal("expected duplicate rejection")
	}

	select {
	case event := <-sink.Events():
		if event.EventType != "duplicate_rejected" {
			t.Fatalf("expected duplicate_rejected, got %s", event.EventType)
		}
		if event.SubmissionID != "existing-1" {
			t.Fatalf("expected existing-1, got %s", event.SubmissionID)
		}
	case <-time.After(time.Second):
		t.Fatal("duplicate rejection never reached the audit sink")
	}
}
