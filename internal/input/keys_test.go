package input

import "testing"

func TestParseKey(t *testing.T) {
	tests := []struct {
		in     string
		name   string
		vk     uint8
		keysym uint32
	}{
		{"q", "q", 'Q', 'q'},
		{"Q", "q", 'Q', 'q'},
		{"7", "7", '7', '7'},
		{"F1", "f1", 0x70, 0xffbe},
		{"f12", "f12", 0x7b, 0xffc9},
		{"CapsLock", "capslock", 0x14, 0xffe5},
		{"caps", "capslock", 0x14, 0xffe5},
		{" escape ", "esc", 0x1b, 0xff1b},
		{"space", "space", 0x20, 0x20},
		{"control", "ctrl", 0x11, 0xffe3},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, err := ParseKey(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if k.String() != tt.name || k.VK() != tt.vk || k.Keysym() != tt.keysym {
				t.Fatalf("got %s vk=0x%x keysym=0x%x, want %s vk=0x%x keysym=0x%x",
					k, k.VK(), k.Keysym(), tt.name, tt.vk, tt.keysym)
			}
		})
	}
}

func TestParseKeyRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "f0", "f13", "qq", "!", "hyper"} {
		if _, err := ParseKey(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestMustParseKeyPanicsOnUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustParseKey("nope")
}
