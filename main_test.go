package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SourceAcademyGame/internal/console"
)

func run(t *testing.T, in io.Reader, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if in != nil {
		cmd.SetIn(in)
	}
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	out, err := run(t, nil, "check", "configs/checkpoint.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "checkpoint chapter-1: 2 dialogues, 5 actions")
	assert.Contains(t, out, "console-hint")
	assert.Contains(t, out, "intro")

	_, err = run(t, nil, "check", "configs/missing.yaml")
	assert.Error(t, err)
}

func TestPlayCommand(t *testing.T) {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		defer pw.Close()
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if _, err := pw.Write([]byte("\n")); err != nil {
					return
				}
			}
		}
	}()

	out, err := run(t, pr, "play", "configs/checkpoint.yaml", "console-hint", "--name", "Avery")
	close(done)
	<-stopped
	require.NoError(t, err)
	assert.Contains(t, out, "The console blinks. Maybe Avery should try typing something.")
}

func TestPlayCommandWithPipedInput(t *testing.T) {
	// All newlines are buffered before the intro's wait action finishes.
	in := strings.NewReader(strings.Repeat("\n", 8))
	out, err := run(t, in, "play", "configs/checkpoint.yaml", "intro", "--name", "Avery")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome aboard, Avery.")
	assert.Contains(t, out, "flags set: [story.chapter-1.met-scottie]")
}

func TestPlayCommandInputEndsEarly(t *testing.T) {
	out, err := run(t, strings.NewReader("\n"), "play", "configs/checkpoint.yaml", "intro")
	require.ErrorIs(t, err, console.ErrInputClosed)
	assert.Contains(t, out, "I... think so.")
	assert.NotContains(t, out, "Welcome aboard")
}

func TestPlayUnknownDialogue(t *testing.T) {
	_, err := run(t, nil, "play", "configs/checkpoint.yaml", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no dialogue "nope"`)
}
