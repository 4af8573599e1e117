//go:build !windows

package eventlog

import "os"

func IsElevated() bool {
	return os.Geteuid() == 0
}
