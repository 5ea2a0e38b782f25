package main

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeakRatio(t *testing.T) {
	assert.Equal(t, 0.0, peakRatio(10, 0))
	assert.Equal(t, 0.5, peakRatio(512, 1024))
	assert.Equal(t, 1.0, peakRatio(64, 64))
}

func TestRunCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framesim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frames: 5\nlog_interval: 0\n"), 0o600))

	frames, mmap := 3, false
	logLevel, listenAddr := "error", ""
	cmd := &runCommand{
		configFile: &path,
		frames:     &frames,
		mmap:       &mmap,
		logLevel:   &logLevel,
		listenAddr: &listenAddr,
	}
	assert.NoError(t, cmd.run(nil))
}

func TestRunCommandBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framesim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alignment: 3\n"), 0o600))

	frames, mmap := 0, false
	logLevel, listenAddr := "error", ""
	cmd := &runCommand{
		configFile: &path,
		frames:     &frames,
		mmap:       &mmap,
		logLevel:   &logLevel,
		listenAddr: &listenAddr,
	}
	assert.ErrorContains(t, cmd.run(nil), "alignment")
}

func TestRunCommandLoopError(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on mmap refusing an oversized mapping")
	}
	path := filepath.Join(t.TempDir(), "framesim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frame_arena_size: 1EB\n"), 0o600))

	frames, mmap := 1, true
	logLevel, listenAddr := "error", ""
	cmd := &runCommand{
		configFile: &path,
		frames:     &frames,
		mmap:       &mmap,
		logLevel:   &logLevel,
		listenAddr: &listenAddr,
	}
	err := cmd.run(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build frame loop: creating frame arena")
}
