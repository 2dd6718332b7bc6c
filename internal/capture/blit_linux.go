//go:build linux

package capture

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// x11BlitAPI maps the device-context protocol onto X11: contexts are GCs on
// the root window, bitmaps are pixmaps, selecting records which pixmap a
// memory GC draws into, and BitBlt is CopyArea.
type x11BlitAPI struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo

	mu       sync.Mutex
	selected map[uintptr]uintptr
}

func newPlatformBlitAPI() (blitAPI, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	return &x11BlitAPI{
		conn:     conn,
		root:     screen.Root,
		screen:   screen,
		selected: make(map[uintptr]uintptr),
	}, nil
}

func (x *x11BlitAPI) newGC() (uintptr, error) {
	gc, err := xproto.NewGcontextId(x.conn)
	if err != nil {
		return 0, fmt.Errorf("allocate gc id: %w", err)
	}
	err = xproto.CreateGCChecked(x.conn, gc, xproto.Drawable(x.root),
		xproto.GcSubwindowMode, []uint32{xproto.SubwindowModeIncludeInferiors}).Check()
	if err != nil {
		return 0, fmt.Errorf("create gc: %w", err)
	}
	return uintptr(gc), nil
}

func (x *x11BlitAPI) freeGC(gc uintptr) error {
	x.mu.Lock()
	delete(x.selected, gc)
	x.mu.Unlock()
	return xproto.FreeGCChecked(x.conn, xproto.Gcontext(gc)).Check()
}

func (x *x11BlitAPI) WindowDC() (uintptr, error) { return x.newGC() }

func (x *x11BlitAPI) ReleaseWindowDC(dc uintptr) error { return x.freeGC(dc) }

func (x *x11BlitAPI) CreateCompatibleDC(uintptr) (uintptr, error) { return x.newGC() }

func (x *x11BlitAPI) DeleteDC(dc uintptr) error { return x.freeGC(dc) }

func (x *x11BlitAPI) CreateCompatibleBitmap(_ uintptr, w, h int) (uintptr, error) {
	pix, err := xproto.NewPixmapId(x.conn)
	if err != nil {
		return 0, fmt.Errorf("allocate pixmap id: %w", err)
	}
	err = xproto.CreatePixmapChecked(x.conn, x.screen.RootDepth, pix,
		xproto.Drawable(x.root), uint16(w), uint16(h)).Check()
	if err != nil {
		return 0, fmt.Errorf("create pixmap: %w", err)
	}
	return uintptr(pix), nil
}

func (x *x11BlitAPI) DeleteObject(obj uintptr) error {
	return xproto.FreePixmapChecked(x.conn, xproto.Pixmap(obj)).Check()
}

func (x *x11BlitAPI) SelectObject(dc, obj uintptr) (uintptr, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	prev := x.selected[dc]
	if obj == 0 {
		delete(x.selected, dc)
	} else {
		x.selected[dc] = obj
	}
	return prev, nil
}

func (x *x11BlitAPI) BitBlt(dst uintptr, w, h int, _ uintptr, srcX, srcY int) error {
	x.mu.Lock()
	pix, ok := x.selected[dst]
	x.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pixmap selected into gc %#x", dst)
	}

	return xproto.CopyAreaChecked(x.conn,
		xproto.Drawable(x.root), xproto.Drawable(pix), xproto.Gcontext(dst),
		int16(srcX), int16(srcY), 0, 0, uint16(w), uint16(h)).Check()
}

func (x *x11BlitAPI) BitmapBits(_, bmp uintptr, w, h int, dst []byte) error {
	depth := int(x.screen.RootDepth)
	if depth != 24 && depth != 32 {
		return fmt.Errorf("unsupported root depth %d", depth)
	}

	reply, err := xproto.GetImage(
		x.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(bmp),
		0, 0,
		uint16(w), uint16(h),
		0xffffffff,
	).Reply()
	if err != nil {
		return fmt.Errorf("failed to get image: %w", err)
	}

	n := w * h * BytesPerPixel
	if len(reply.Data) < n || len(dst) < n {
		return fmt.Errorf("image data is %d bytes, need %d", len(reply.Data), n)
	}
	// ZPixmap at depth 24/32 is already BGRX on little-endian servers.
	copy(dst[:n], reply.Data[:n])
	for i := 3; i < n; i += BytesPerPixel {
		dst[i] = 0xFF
	}
	return nil
}

func (x *x11BlitAPI) Close() error {
	x.conn.Close()
	return nil
}
