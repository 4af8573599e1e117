//go:build windows

package eventlog

import "golang.org/x/sys/windows"

func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
