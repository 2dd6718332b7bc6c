// Package input polls keyboard state for the quit key and the key that
// gates aim output.
package input

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedPlatform is returned where keyboard polling is unavailable.
var ErrUnsupportedPlatform = errors.New("keyboard polling not supported on this platform")

// Key identifies a physical key by its Windows virtual-key code and X11
// keysym.
type Key struct {
	name   string
	vk     uint8
	keysym uint32
}

// String returns the canonical lower-case name.
func (k Key) String() string { return k.name }

// VK returns the Windows virtual-key code.
func (k Key) VK() uint8 { return k.vk }

// Keysym returns the X11 keysym.
func (k Key) Keysym() uint32 { return k.keysym }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.name == "" }

var named = map[string]Key{
	"capslock": {"capslock", 0x14, 0xffe5},
	"shift":    {"shift", 0x10, 0xffe1},
	"ctrl":     {"ctrl", 0x11, 0xffe3},
	"alt":      {"alt", 0x12, 0xffe9},
	"esc":      {"esc", 0x1b, 0xff1b},
	"space":    {"space", 0x20, 0x0020},
}

var aliases = map[string]string{
	"caps":    "capslock",
	"control": "ctrl",
	"escape":  "esc",
}

// ParseKey accepts a single letter or digit, F1 to F12, or one of capslock,
// shift, ctrl, alt, esc and space. Matching is case-insensitive.
func ParseKey(s string) (Key, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if a, ok := aliases[name]; ok {
		name = a
	}

	if k, ok := named[name]; ok {
		return k, nil
	}

	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			// VK codes for letters are the upper-case ASCII values, keysyms
			// the lower-case ones.
			return Key{name: name, vk: c - 'a' + 'A', keysym: uint32(c)}, nil
		case c >= '0' && c <= '9':
			return Key{name: name, vk: c, keysym: uint32(c)}, nil
		}
	}

	if len(name) >= 2 && name[0] == 'f' {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 1 && n <= 12 {
			return Key{name: name, vk: uint8(0x70 + n - 1), keysym: uint32(0xffbe + n - 1)}, nil
		}
	}

	return Key{}, fmt.Errorf("unknown key %q", s)
}

// MustParseKey is ParseKey for constants known to be valid.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// KeyState answers keyboard queries against the live OS state.
type KeyState interface {
	// Pressed reports whether k is currently held down.
	Pressed(k Key) bool
	// Toggled reports whether a lock key such as capslock is on.
	Toggled(k Key) bool
	Close() error
}
