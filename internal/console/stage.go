// Package console plays dialogues in a terminal. Text goes to a writer and
// every newline read from the input advances the dialogue.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"SourceAcademyGame/internal/dialogue"
)

// ErrInputClosed is returned by Pump when the input ends while the session
// still waits for an advance.
var ErrInputClosed = errors.New("console: input closed before the dialogue finished")

// pollInterval is how often Pump checks whether the session is listening.
const pollInterval = 5 * time.Millisecond

// Session is the part of a playback session Pump paces its input against.
type Session interface {
	AwaitingAdvance() bool
	Done() <-chan struct{}
}

// Stage is a dialogue.Stage backed by a terminal.
type Stage struct {
	mu    sync.Mutex
	out   io.Writer
	boxes int
	subs  dialogue.Subscribers
}

// NewStage returns a stage that writes to out.
func NewStage(out io.Writer) *Stage {
	return &Stage{out: out}
}

func (s *Stage) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// NewTextRenderer implements dialogue.Stage.
func (s *Stage) NewTextRenderer() dialogue.TextRenderer {
	s.mu.Lock()
	s.boxes++
	id := fmt.Sprintf("console-box-%d", s.boxes)
	s.mu.Unlock()
	return &textBox{stage: s, id: id}
}

// NewSpeakerRenderer implements dialogue.Stage.
func (s *Stage) NewSpeakerRenderer(username string) dialogue.SpeakerRenderer {
	return &speakerLine{stage: s, username: username}
}

// Advance delivers one advance to every subscribed text box.
func (s *Stage) Advance() {
	s.subs.Notify()
}

// Pump turns each line read from in into one advance of session. A line is
// held until the session is listening, so input typed or piped while a
// line's actions run is not lost. Pump returns nil once the session ends or
// ctx is done, and ErrInputClosed when in is exhausted first.
func (s *Stage) Pump(ctx context.Context, in io.Reader, session Session) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if !waitListening(ctx, session) {
			return nil
		}
		s.Advance()
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	// The last advance may have ended the dialogue; only report closed
	// input if the session asks for more.
	if waitListening(ctx, session) {
		return ErrInputClosed
	}
	return nil
}

// waitListening blocks until session awaits an advance. It returns false if
// the session ends or ctx is done first.
func waitListening(ctx context.Context, session Session) bool {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if session.AwaitingAdvance() {
			return true
		}
		select {
		case <-session.Done():
			return false
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

type textBox struct {
	stage *Stage
	id    string
}

type boxContainer string

func (c boxContainer) ContainerID() string { return string(c) }

func (b *textBox) Container() dialogue.Container { return boxContainer(b.id) }

func (b *textBox) Render(text string) {
	b.stage.printf("  %s\n", text)
}

func (b *textBox) Destroy() {
	b.stage.printf("  ---\n")
}

func (b *textBox) OnAdvance(fn func()) func() {
	return b.stage.subs.Subscribe(fn)
}

type speakerLine struct {
	stage    *Stage
	username string
}

// SetSpeaker prints who said the line just shown. Clearing prints nothing.
func (r *speakerLine) SetSpeaker(detail *dialogue.SpeakerDetail) {
	if detail == nil {
		return
	}
	name := detail.SpeakerID
	if name == dialogue.SpeakerYou {
		name = r.username
	}
	label := strings.TrimSpace(name)
	if detail.Expression != "" {
		label += ", " + detail.Expression
	}
	r.stage.printf("      (%s)\n", label)
}
