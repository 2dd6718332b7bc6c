//go:build linux

package input

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/FocusTracker/internal/logger"
)

// x11Keys polls the server keymap. Keysyms are resolved to keycodes once,
// when first queried.
type x11Keys struct {
	conn *xgb.Conn
	root xproto.Window

	mu       sync.Mutex
	keycodes map[uint32][]xproto.Keycode
}

// NewKeyState connects to the default X display.
func NewKeyState() (KeyState, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	ks := &x11Keys{
		conn: conn,
		root: xproto.Setup(conn).DefaultScreen(conn).Root,
	}
	if err := ks.loadMapping(); err != nil {
		conn.Close()
		return nil, err
	}
	return ks, nil
}

func (k *x11Keys) loadMapping() error {
	setup := xproto.Setup(k.conn)
	first := setup.MinKeycode
	count := byte(setup.MaxKeycode-setup.MinKeycode) + 1

	reply, err := xproto.GetKeyboardMapping(k.conn, first, count).Reply()
	if err != nil {
		return fmt.Errorf("failed to get keyboard mapping: %w", err)
	}

	per := int(reply.KeysymsPerKeycode)
	codes := make(map[uint32][]xproto.Keycode)
	for i := 0; i < int(count); i++ {
		code := xproto.Keycode(int(first) + i)
		for j := 0; j < per; j++ {
			sym := uint32(reply.Keysyms[i*per+j])
			if sym != 0 {
				codes[sym] = append(codes[sym], code)
			}
		}
	}

	k.mu.Lock()
	k.keycodes = codes
	k.mu.Unlock()

	logger.WithComponent("x11-keys").Debug().Int("keysyms", len(codes)).Msg("Loaded keyboard mapping")
	return nil
}

func (k *x11Keys) Pressed(key Key) bool {
	k.mu.Lock()
	codes := k.keycodes[key.keysym]
	k.mu.Unlock()
	if len(codes) == 0 {
		return false
	}

	reply, err := xproto.QueryKeymap(k.conn).Reply()
	if err != nil {
		return false
	}
	for _, c := range codes {
		if reply.Keys[c/8]&(1<<(c%8)) != 0 {
			return true
		}
	}
	return false
}

// CanToggle reports whether Toggled can observe key. X only exposes the
// caps lock state, as the Lock modifier.
func CanToggle(key Key) bool {
	return key.keysym == named["capslock"].keysym
}

func (k *x11Keys) Toggled(key Key) bool {
	if !CanToggle(key) {
		return false
	}
	reply, err := xproto.QueryPointer(k.conn, k.root).Reply()
	if err != nil {
		return false
	}
	return reply.Mask&xproto.KeyButMaskLock != 0
}

func (k *x11Keys) Close() error {
	k.conn.Close()
	return nil
}
