package event

import (
	"context"
	"testing"
)

func TestNewEventFillsEnvelope(t *testing.T) {
	ev := New(TypeSessionIssued, "u1", map[string]string{"session_id": "s1"})

	if ev.ID == "" {
		t.Fatal("missing event id")
	}
	if ev.Type != TypeSessionIssued || ev.Source != "auth0" || ev.UserID != "u1" {
		t.Fatalf("bad envelope: %+v", ev)
	}
	if ev.Time.IsZero() {
		t.Fatal("missing event time")
	}
	if ev.Data["session_id"] != "s1" {
		t.Fatalf("bad data: %v", ev.Data)
	}
}

func TestNilProducerIsSafe(t *testing.T) {
	var p *Producer

	p.Publish(context.Background(), New(TypeSessionIssued, "u1", nil))
	if err := p.Close(); err != nil {
		t.Fatalf("Close on nil producer: %v", err)
	}
}

func TestNewProducerDisabledWithoutBrokers(t *testing.T) {
	if p := NewProducer(Config{}, nil); p != nil {
		t.Fatal("producer should be nil with no brokers")
	}
}
