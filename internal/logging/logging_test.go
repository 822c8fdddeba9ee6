package logging

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name string
		do   func(*testing.T, *bytes.Buffer)
	}{
		{
			name: "debug suppressed by default",
			do: func(t *testing.T, buf *bytes.Buffer) {
				SetDebug(false)
				Debugf("hidden %d", 1)
				require.Empty(t, buf.String())
			},
		},
		{
			name: "debug printed when enabled",
			do: func(t *testing.T, buf *bytes.Buffer) {
				SetDebug(true)
				Debugf("shown %d", 2)
				require.Contains(t, buf.String(), "shown 2")
			},
		},
		{
			name: "plain messages follow the level",
			do: func(t *testing.T, buf *bytes.Buffer) {
				Debug("quiet")
				Info("loud")
				require.NotContains(t, buf.String(), "quiet")
				require.Contains(t, buf.String(), "msg=loud")

				SetDebug(true)
				Debug("quiet now shown")
				require.Contains(t, buf.String(), "quiet now shown")
			},
		},
		{
			name: "error carries error attribute",
			do: func(t *testing.T, buf *bytes.Buffer) {
				Error("boom", errTest)
				require.Contains(t, buf.String(), "error=test")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetOutput(&buf)
			t.Cleanup(func() { SetDebug(false) })
			tt.do(t, &buf)
		})
	}
}

func TestLogToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notedav.log")
	LogToFile(path)
	t.Cleanup(func() { LogToFile("") })

	Infof("written to %s", "file")
	require.FileExists(t, path)
}

type testErr struct{}

func (testErr) Error() string { return "test" }

var errTest = testErr{}
