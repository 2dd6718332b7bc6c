//go:build linux

package input

import "testing"

func TestCanToggleOnlyCapsLock(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"capslock", true},
		{"caps", true},
		{"shift", false},
		{"q", false},
		{"f1", false},
	}
	for _, tt := range tests {
		if got := CanToggle(MustParseKey(tt.key)); got != tt.want {
			t.Errorf("CanToggle(%s): expected %v, got %v", tt.key, tt.want, got)
		}
	}
}
