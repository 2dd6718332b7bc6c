//go:build windows

package display

import (
	"fmt"

	"golang.org/x/sys/windows"
)

const (
	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCxVirtualScreen = 78
	smCyVirtualScreen = 79
)

var procGetSystemMetrics = windows.NewLazySystemDLL("user32.dll").NewProc("GetSystemMetrics")

// QueryBounds returns the virtual desktop spanning every attached monitor.
func QueryBounds() (ScreenBounds, error) {
	b := ScreenBounds{
		OriginX: systemMetric(smXVirtualScreen),
		OriginY: systemMetric(smYVirtualScreen),
		Width:   systemMetric(smCxVirtualScreen),
		Height:  systemMetric(smCyVirtualScreen),
	}
	if b.Width <= 0 || b.Height <= 0 {
		return ScreenBounds{}, fmt.Errorf("GetSystemMetrics returned empty virtual screen %s", b)
	}
	return b, nil
}

func systemMetric(idx int) int {
	v, _, _ := procGetSystemMetrics.Call(uintptr(idx))
	return int(int32(v))
}
