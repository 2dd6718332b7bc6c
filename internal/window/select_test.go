package window

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeSource struct {
	windows  []Info
	listErr  error
	results  []error // consumed per Activate call; nil once exhausted
	attempts int
}

func (f *fakeSource) Name() string                   { return "fake" }
func (f *fakeSource) ListWindows() ([]Info, error)   { return f.windows, f.listErr }
func (f *fakeSource) Refresh(win Info) (Info, error) { return win, nil }
func (f *fakeSource) Close() error                   { return nil }

func (f *fakeSource) Activate(Info) error {
	f.attempts++
	if len(f.results) == 0 {
		return nil
	}
	err := f.results[0]
	f.results = f.results[1:]
	return err
}

func testWindows() []Info {
	return []Info{
		{Handle: 1, Title: "Terminal", Box: boxFromRect(0, 0, 800, 600)},
		{Handle: 2, Title: ""},
		{Handle: 3, Title: "Game", Box: boxFromRect(100, 50, 1380, 770)},
	}
}

func TestSelectPrintsTitledWindowsAndPicksByIndex(t *testing.T) {
	src := &fakeSource{windows: testWindows()}
	var out bytes.Buffer

	got, err := Select(src, strings.NewReader("2\n"), &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Handle != 3 {
		t.Fatalf("expected window 3, got %+v", got)
	}
	if got.Box.Height != 720 {
		t.Fatalf("expected box height 720, got %d", got.Box.Height)
	}

	listing := out.String()
	if !strings.Contains(listing, "[0]: Terminal\n") || !strings.Contains(listing, "[2]: Game\n") {
		t.Fatalf("listing missing entries:\n%s", listing)
	}
	if strings.Contains(listing, "[1]:") {
		t.Fatalf("untitled window should not be listed:\n%s", listing)
	}
}

func TestSelectAcceptsInputWithoutNewline(t *testing.T) {
	src := &fakeSource{windows: testWindows()}
	got, err := Select(src, strings.NewReader(" 0 "), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Handle != 1 {
		t.Fatalf("expected window 1, got %+v", got)
	}
}

func TestSelectRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not a number", "abc\n"},
		{"negative", "-1\n"},
		{"out of range", "3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{windows: testWindows()}
			_, err := Select(src, strings.NewReader(tt.input), &bytes.Buffer{})
			if !errors.Is(err, ErrInvalidSelection) {
				t.Fatalf("expected ErrInvalidSelection, got %v", err)
			}
		})
	}
}

func TestSelectPropagatesListError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Select(&fakeSource{listErr: boom}, strings.NewReader("0\n"), &bytes.Buffer{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestActivateWithRetry(t *testing.T) {
	notYet := ErrNotActivated

	tests := []struct {
		name         string
		results      []error
		retries      int
		wantErr      error
		wantAttempts int
	}{
		{"first try", nil, 3, nil, 1},
		{"succeeds after retries", []error{notYet, notYet}, 3, nil, 3},
		{"exhausts retries", []error{notYet, notYet, notYet}, 3, ErrActivationFailed, 3},
		{"permanent error stops at once", []error{ErrWindowGone}, 30, ErrWindowGone, 1},
		{"zero retries still tries once", []error{notYet}, 0, ErrNotActivated, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{results: append([]error(nil), tt.results...)}
			err := ActivateWithRetry(context.Background(), src, Info{Title: "Game"}, tt.retries, time.Millisecond)

			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if src.attempts != tt.wantAttempts {
				t.Fatalf("expected %d attempts, got %d", tt.wantAttempts, src.attempts)
			}
		})
	}
}

func TestActivateWithRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{results: []error{ErrNotActivated, ErrNotActivated}}
	err := ActivateWithRetry(ctx, src, Info{}, 30, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if src.attempts != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", src.attempts)
	}
}
