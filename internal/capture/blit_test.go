package capture

import (
	"errors"
	"fmt"
	"slices"
	"testing"
)

// fakeBlitAPI hands out numbered handles and tracks which are still open.
type fakeBlitAPI struct {
	failAt   string
	next     uintptr
	open     map[uintptr]string
	selected map[uintptr]uintptr
	calls    []string
	closed   int
}

func newFakeBlitAPI(failAt string) *fakeBlitAPI {
	return &fakeBlitAPI{
		failAt:   failAt,
		next:     100,
		open:     map[uintptr]string{},
		selected: map[uintptr]uintptr{},
	}
}

func (f *fakeBlitAPI) step(name string) error {
	f.calls = append(f.calls, name)
	if f.failAt == name {
		return fmt.Errorf("injected %s failure", name)
	}
	return nil
}

func (f *fakeBlitAPI) acquire(kind string) uintptr {
	f.next++
	f.open[f.next] = kind
	return f.next
}

func (f *fakeBlitAPI) free(kind string, h uintptr) error {
	if f.open[h] != kind {
		return fmt.Errorf("releasing %s %d which is not an open %s", kind, h, kind)
	}
	delete(f.open, h)
	return nil
}

func (f *fakeBlitAPI) WindowDC() (uintptr, error) {
	if err := f.step("WindowDC"); err != nil {
		return 0, err
	}
	return f.acquire("window-dc"), nil
}

func (f *fakeBlitAPI) ReleaseWindowDC(dc uintptr) error {
	f.calls = append(f.calls, "ReleaseWindowDC")
	return f.free("window-dc", dc)
}

func (f *fakeBlitAPI) CreateCompatibleDC(uintptr) (uintptr, error) {
	if err := f.step("CreateCompatibleDC"); err != nil {
		return 0, err
	}
	return f.acquire("memory-dc"), nil
}

func (f *fakeBlitAPI) DeleteDC(dc uintptr) error {
	f.calls = append(f.calls, "DeleteDC")
	if _, ok := f.selected[dc]; ok {
		return errors.New("deleting dc with bitmap still selected")
	}
	return f.free("memory-dc", dc)
}

func (f *fakeBlitAPI) CreateCompatibleBitmap(_ uintptr, w, h int) (uintptr, error) {
	if err := f.step("CreateCompatibleBitmap"); err != nil {
		return 0, err
	}
	return f.acquire("bitmap"), nil
}

func (f *fakeBlitAPI) DeleteObject(obj uintptr) error {
	f.calls = append(f.calls, "DeleteObject")
	return f.free("bitmap", obj)
}

func (f *fakeBlitAPI) SelectObject(dc, obj uintptr) (uintptr, error) {
	if f.selected[dc] == 0 {
		if err := f.step("SelectObject"); err != nil {
			return 0, err
		}
	} else {
		f.calls = append(f.calls, "Deselect")
	}
	prev := f.selected[dc]
	if obj == 0 {
		delete(f.selected, dc)
	} else {
		f.selected[dc] = obj
	}
	return prev, nil
}

func (f *fakeBlitAPI) BitBlt(dst uintptr, w, h int, src uintptr, x, y int) error {
	return f.step("BitBlt")
}

func (f *fakeBlitAPI) BitmapBits(dc, bmp uintptr, w, h int, dst []byte) error {
	if err := f.step("BitmapBits"); err != nil {
		return err
	}
	if _, stillSelected := f.selected[dc]; stillSelected {
		return errors.New("reading bits of a selected bitmap")
	}
	for i := range dst {
		dst[i] = byte(i)
	}
	return nil
}

func (f *fakeBlitAPI) Close() error {
	f.closed++
	return nil
}

func TestBlitBackendReturnsExactBGRABuffer(t *testing.T) {
	api := newFakeBlitAPI("")
	b := newBlitBackend(testRegion, api)
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	f, ok := b.LatestFrame()
	if !ok {
		t.Fatalf("expected a frame, calls: %v", api.calls)
	}
	if len(f.Pix) != testRegion.Width()*testRegion.Height()*4 {
		t.Fatalf("expected %d bytes, got %d", testRegion.Width()*testRegion.Height()*4, len(f.Pix))
	}
	if f.Width != 4 || f.Height != 3 {
		t.Fatalf("expected 4x3 frame, got %dx%d", f.Width, f.Height)
	}
	if len(api.open) != 0 {
		t.Fatalf("leaked handles: %v", api.open)
	}

	want := []string{
		"WindowDC", "CreateCompatibleDC", "CreateCompatibleBitmap", "SelectObject",
		"BitBlt", "Deselect", "BitmapBits",
		"DeleteObject", "DeleteDC", "ReleaseWindowDC",
	}
	if !slices.Equal(api.calls, want) {
		t.Fatalf("expected call order\n  %v\ngot\n  %v", want, api.calls)
	}
}

func TestBlitBackendReleasesHandlesOnEveryFailure(t *testing.T) {
	steps := []string{"WindowDC", "CreateCompatibleDC", "CreateCompatibleBitmap", "SelectObject", "BitBlt", "BitmapBits"}

	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			api := newFakeBlitAPI(step)
			b := newBlitBackend(testRegion, api)
			if err := b.Start(); err != nil {
				t.Fatalf("start: %v", err)
			}

			if f, ok := b.LatestFrame(); ok {
				t.Fatalf("expected absent frame when %s fails, got %dx%d", step, f.Width, f.Height)
			}
			if len(api.open) != 0 {
				t.Fatalf("leaked handles after %s failure: %v (calls %v)", step, api.open, api.calls)
			}
			if len(api.selected) != 0 {
				t.Fatalf("bitmap left selected after %s failure", step)
			}
		})
	}
}

func TestBlitBackendAbsentWhenStopped(t *testing.T) {
	api := newFakeBlitAPI("")
	b := newBlitBackend(testRegion, api)

	if _, ok := b.LatestFrame(); ok {
		t.Fatalf("expected absent frame before Start")
	}
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, ok := b.LatestFrame(); ok {
		t.Fatalf("expected absent frame after Stop")
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if api.closed != 1 {
		t.Fatalf("expected api closed once, got %d", api.closed)
	}
	if err := b.Start(); err == nil {
		t.Fatalf("expected restart after Stop to fail")
	}
}
