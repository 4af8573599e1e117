package service_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsentry/internal/service"
)

func TestDiagnosticsTail(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "winsentry.log")
	var b strings.Builder
	for i := 1; i <= 30; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(logFile, []byte(b.String()), 0o644))

	svc := service.NewDiagnosticsService(logFile)

	resp, err := svc.Tail(0)
	require.NoError(t, err)
	assert.Equal(t, logFile, resp.File)
	require.Len(t, resp.Lines, 20)
	assert.Equal(t, "line 11", resp.Lines[0])
	assert.Equal(t, "line 30", resp.Lines[19])

	resp, err = svc.Tail(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 28", "line 29", "line 30"}, resp.Lines)

	resp, err = svc.Tail(10000)
	require.NoError(t, err)
	assert.Len(t, resp.Lines, 30)
}

func TestDiagnosticsTail_MissingFile(t *testing.T) {
	svc := service.NewDiagnosticsService(filepath.Join(t.TempDir(), "absent.log"))

	resp, err := svc.Tail(5)
	require.NoError(t, err)
	assert.Empty(t, resp.Lines)
}
