package multi

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const doc = "id,received_at\n1,2022-01-01 00:00:00.000 UTC\n"

// mockOutput records calls for test assertions.
type mockOutput struct {
	docs   []string
	closed bool
	err    error // if set, Write and Close return this error
}

func (m *mockOutput) Write(_ context.Context, csv string) error {
	m.docs = append(m.docs, csv)
	return m.err
}

func (m *mockOutput) Close() error {
	m.closed = true
	return m.err
}

func TestFanOutDeliversToAll(t *testing.T) {
	a := &mockOutput{}
	b := &mockOutput{}
	c := &mockOutput{}
	m := New(a, b, c)

	if err := m.Write(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, out := range []*mockOutput{a, b, c} {
		if len(out.docs) != 1 {
			t.Fatalf("output %d: got %d docs, want 1", i, len(out.docs))
		}
		if out.docs[0] != doc {
			t.Errorf("output %d: got %q, want %q", i, out.docs[0], doc)
		}
	}
}

func TestErrorDoesNotPreventDelivery(t *testing.T) {
	failing := &mockOutput{err: errors.New("disk full")}
	healthy := &mockOutput{}
	m := New(failing, healthy)

	err := m.Write(context.Background(), doc)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected wrapped error, got %v", err)
	}

	// Healthy output still received the document despite earlier failure.
	if len(healthy.docs) != 1 {
		t.Fatalf("healthy output got %d docs, want 1", len(healthy.docs))
	}
	if len(failing.docs) != 1 {
		t.Fatalf("failing output got %d docs, want 1", len(failing.docs))
	}
}

func TestCloseCallsAllOutputs(t *testing.T) {
	a := &mockOutput{}
	b := &mockOutput{}
	m := New(a, b)

	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !a.closed || !b.closed {
		t.Errorf("Close not called on all outputs: a=%v b=%v", a.closed, b.closed)
	}
}

func TestCloseCollectsErrors(t *testing.T) {
	errA := errors.New("err-a")
	errB := errors.New("err-b")
	a := &mockOutput{err: errA}
	b := &mockOutput{err: errB}
	m := New(a, b)

	err := m.Close()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected both errors, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("Close should be called on all outputs even when errors occur")
	}
}

func TestNoOutputs(t *testing.T) {
	m := New()
	if err := m.Write(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
