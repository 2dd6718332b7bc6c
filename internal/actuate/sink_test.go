package actuate

import (
	"errors"
	"testing"
)

type move struct{ dx, dy int }

func TestFanoutCallsEverySink(t *testing.T) {
	var a, b []move
	boom := errors.New("boom")

	f := NewFanout(
		SinkFunc(func(dx, dy int) error { a = append(a, move{dx, dy}); return boom }),
		nil,
		SinkFunc(func(dx, dy int) error { b = append(b, move{dx, dy}); return nil }),
	)
	if f.Len() != 2 {
		t.Fatalf("expected nil sink to be skipped, got %d sinks", f.Len())
	}

	err := f.MoveBy(3, -4)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(a) != 1 || len(b) != 1 || b[0] != (move{3, -4}) {
		t.Fatalf("expected both sinks to see the move, got a=%v b=%v", a, b)
	}
}

func TestFanoutEmptyAndLogSink(t *testing.T) {
	if err := NewFanout().MoveBy(1, 1); err != nil {
		t.Fatalf("empty fan-out should succeed, got %v", err)
	}
	if err := NewLogSink().MoveBy(1, 1); err != nil {
		t.Fatalf("log sink should never fail, got %v", err)
	}
}
