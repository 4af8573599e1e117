//go:build !windows

package eventlog

import "fmt"

func NewSystemChannel(batchSize int) (Channel, error) {
	return nil, fmt.Errorf("%w: the Windows event log is only available on windows; use CHANNEL_KIND=file, elasticsearch or postgres", ErrUnsupportedPlatform)
}
