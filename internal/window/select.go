package window

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/logger"
)

// Defaults for ActivateWithRetry.
const (
	DefaultActivationRetries = 30
	DefaultActivationBackoff = 3 * time.Second
)

// PrintWindows writes one "[index]: title" line per titled window. Indices
// refer to the full list, so untitled windows leave gaps.
func PrintWindows(out io.Writer, windows []Info) {
	for i, w := range windows {
		if w.Title == "" {
			continue
		}
		fmt.Fprintf(out, "[%d]: %s\n", i, w.Title)
	}
}

// Select lists the windows of src on out and reads the chosen index from in.
func Select(src Source, in io.Reader, out io.Writer) (Info, error) {
	windows, err := src.ListWindows()
	if err != nil {
		return Info{}, fmt.Errorf("failed to list windows: %w", err)
	}
	if len(windows) == 0 {
		return Info{}, fmt.Errorf("%w: no windows found", ErrInvalidSelection)
	}

	fmt.Fprintln(out, "=== All Windows ===")
	PrintWindows(out, windows)
	fmt.Fprint(out, "Please enter the number corresponding to the window you'd like to select: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return Info{}, fmt.Errorf("failed to read selection: %w", err)
	}
	return pick(windows, line)
}

func pick(windows []Info, input string) (Info, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %q is not a number", ErrInvalidSelection, strings.TrimSpace(input))
	}
	if idx < 0 || idx >= len(windows) {
		return Info{}, fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidSelection, idx, len(windows))
	}
	return windows[idx], nil
}

// ActivateWithRetry calls src.Activate up to retries times, sleeping backoff
// between attempts. Only ErrNotActivated is retried; any other error aborts
// immediately. Cancelling ctx aborts the wait.
func ActivateWithRetry(ctx context.Context, src Source, win Info, retries int, backoff time.Duration) error {
	log := logger.WithComponent("window-activation")

	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		err := src.Activate(win)
		if err == nil {
			log.Info().Str("title", win.Title).Int("attempt", attempt).Msg("Successfully activated the window")
			return nil
		}
		lastErr = err

		if !errors.Is(err, ErrNotActivated) {
			log.Error().Err(err).Str("title", win.Title).Msg("Failed to activate window")
			return fmt.Errorf("%w: %w", ErrActivationFailed, err)
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("retries", retries).
			Msg("Failed to activate window, trying again (switch to the window now)")

		if attempt == retries {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrActivationFailed, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrActivationFailed, retries, lastErr)
}
