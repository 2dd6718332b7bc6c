//go:build linux

package window

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/FocusTracker/internal/logger"
)

// activationPolls bounds how long Activate waits for the window manager to
// report the new active window.
const (
	activationPolls    = 10
	activationInterval = 20 * time.Millisecond
)

// X11Source implements Source using EWMH hints on an X11 display.
type X11Source struct {
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

// NewSource connects to the default X display.
func NewSource() (Source, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	return &X11Source{
		conn:  conn,
		root:  setup.DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom),
	}, nil
}

func (s *X11Source) Name() string { return "x11" }

func (s *X11Source) Close() error {
	s.conn.Close()
	return nil
}

// ListWindows returns all client windows using EWMH _NET_CLIENT_LIST with QueryTree fallback
func (s *X11Source) ListWindows() ([]Info, error) {
	log := logger.WithComponent("x11-windows")

	ids, err := s.clientList()
	if err == nil && len(ids) > 0 {
		log.Debug().Int("count", len(ids)).Msg("ListWindows: using EWMH _NET_CLIENT_LIST")
	} else {
		if err != nil {
			log.Debug().Err(err).Msg("ListWindows: EWMH failed, falling back to QueryTree")
		}
		tree, err := xproto.QueryTree(s.conn, s.root).Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to query window tree: %w", err)
		}
		ids = tree.Children
	}

	windows := make([]Info, 0, len(ids))
	for _, id := range ids {
		info, err := s.windowInfo(id)
		if err != nil {
			log.Debug().Uint32("winID", uint32(id)).Err(err).Msg("Skipping window without geometry")
			continue
		}
		// Skip windows without titles or class (usually not user windows)
		if info.Title == "" && info.Class == "" {
			continue
		}
		windows = append(windows, info)
	}
	return windows, nil
}

func (s *X11Source) clientList() ([]xproto.Window, error) {
	atom, err := s.atom("_NET_CLIENT_LIST")
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(s.conn, false, s.root, atom, xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST property: %w", err)
	}

	ids := make([]xproto.Window, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		ids = append(ids, xproto.Window(binary.LittleEndian.Uint32(reply.Value[i:])))
	}
	return ids, nil
}

// Activate asks the window manager to activate win and waits briefly for
// _NET_ACTIVE_WINDOW to confirm it.
func (s *X11Source) Activate(win Info) error {
	id := xproto.Window(win.Handle)
	if _, err := xproto.GetGeometry(s.conn, xproto.Drawable(id)).Reply(); err != nil {
		return fmt.Errorf("%w: %v", ErrWindowGone, err)
	}

	activeAtom, err := s.atom("_NET_ACTIVE_WINDOW")
	if err != nil {
		return err
	}

	// Source indication 1 marks a request from a normal application.
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: id,
		Type:   activeAtom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{1, uint32(xproto.TimeCurrentTime), 0, 0, 0}),
	}
	mask := uint32(xproto.EventMaskSubstructureRedirect | xproto.EventMaskSubstructureNotify)
	if err := xproto.SendEventChecked(s.conn, false, s.root, mask, string(ev.Bytes())).Check(); err != nil {
		return fmt.Errorf("failed to send _NET_ACTIVE_WINDOW: %w", err)
	}

	for i := 0; i < activationPolls; i++ {
		if active, err := s.activeWindow(activeAtom); err == nil && active == id {
			return nil
		}
		time.Sleep(activationInterval)
	}
	return fmt.Errorf("%w: window manager kept another window active", ErrNotActivated)
}

func (s *X11Source) activeWindow(atom xproto.Atom) (xproto.Window, error) {
	reply, err := xproto.GetProperty(s.conn, false, s.root, atom, xproto.AtomWindow, 0, 1).Reply()
	if err != nil {
		return 0, err
	}
	if len(reply.Value) < 4 {
		return 0, fmt.Errorf("_NET_ACTIVE_WINDOW is empty")
	}
	return xproto.Window(binary.LittleEndian.Uint32(reply.Value)), nil
}

// Refresh re-reads the position of win.
func (s *X11Source) Refresh(win Info) (Info, error) {
	info, err := s.windowInfo(xproto.Window(win.Handle))
	if err != nil {
		return win, fmt.Errorf("%w: %v", ErrWindowGone, err)
	}
	return info, nil
}

// windowInfo reads title, class, pid and root-relative geometry.
func (s *X11Source) windowInfo(id xproto.Window) (Info, error) {
	info := Info{Handle: uintptr(id)}

	geom, err := xproto.GetGeometry(s.conn, xproto.Drawable(id)).Reply()
	if err != nil {
		return info, err
	}
	// Geometry is relative to the parent (often a frame window), so translate
	// the origin into root coordinates.
	x, y := int(geom.X), int(geom.Y)
	if tr, err := xproto.TranslateCoordinates(s.conn, id, s.root, 0, 0).Reply(); err == nil {
		x, y = int(tr.DstX), int(tr.DstY)
	}
	info.Box = boxFromRect(x, y, x+int(geom.Width), y+int(geom.Height))

	for _, name := range []string{"_NET_WM_NAME", "WM_NAME"} {
		if title, err := s.stringProperty(id, name); err == nil && title != "" {
			info.Title = title
			break
		}
	}

	// WM_CLASS format is: instance\0class\0 (two null-terminated strings)
	if classRaw, err := s.stringProperty(id, "WM_CLASS"); err == nil {
		parts := strings.Split(classRaw, "\x00")
		if len(parts) >= 2 && parts[1] != "" {
			info.Class = parts[1]
		} else if parts[0] != "" {
			info.Class = parts[0]
		}
	}

	if atom, err := s.atom("_NET_WM_PID"); err == nil {
		reply, err := xproto.GetProperty(s.conn, false, id, atom, xproto.AtomCardinal, 0, 1).Reply()
		if err == nil && len(reply.Value) >= 4 {
			info.PID = int(binary.LittleEndian.Uint32(reply.Value))
		}
	}

	return info, nil
}

func (s *X11Source) atom(name string) (xproto.Atom, error) {
	if a, ok := s.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(s.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern atom %s: %w", name, err)
	}
	s.atoms[name] = reply.Atom
	return reply.Atom, nil
}

func (s *X11Source) stringProperty(id xproto.Window, name string) (string, error) {
	atom, err := s.atom(name)
	if err != nil {
		return "", err
	}
	reply, err := xproto.GetProperty(s.conn, false, id, atom, xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return "", err
	}
	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}
	return string(reply.Value), nil
}
