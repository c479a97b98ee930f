package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Result summarizes a finished session.
type Result struct {
	SessionID  string
	DialogueID ID
	Lines      int // Non-empty lines shown
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Session is one playback of one dialogue. It owns its renderers and
// generator from Start until the dialogue ends, is cancelled, or is
// superseded.
type Session struct {
	id       string
	dialogue *Dialogue
	username string
	seq      *Sequencer

	text    TextRenderer
	speaker SpeakerRenderer
	lines   LineSource
	actions ActionExecutor

	ctx    context.Context
	cancel context.CancelCauseFunc

	advance   chan struct{}
	accepting atomic.Bool
	shown     atomic.Int64

	startedAt time.Time
	done      chan struct{}
	err       error
}

func newSession(parent context.Context, seq *Sequencer, d *Dialogue, username string) *Session {
	ctx, cancel := context.WithCancelCause(parent)
	return &Session{
		id:        uuid.NewString(),
		dialogue:  d,
		username:  username,
		seq:       seq,
		ctx:       ctx,
		cancel:    cancel,
		advance:   make(chan struct{}, 1),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Dialogue returns the dialogue being played.
func (s *Session) Dialogue() *Dialogue { return s.dialogue }

// Done is closed once the session has torn down its renderers.
func (s *Session) Done() <-chan struct{} { return s.done }

// LinesShown returns the number of non-empty lines rendered so far.
func (s *Session) LinesShown() int { return int(s.shown.Load()) }

// AwaitingAdvance reports whether the current line and its actions are done
// and the session is waiting for advance input.
func (s *Session) AwaitingAdvance() bool { return s.accepting.Load() }

// Wait blocks until the session ends. It returns nil when the dialogue was
// played to the end, context.Canceled when cancelled, ErrSuperseded when a
// newer session replaced it, or the error of a failed action batch.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Cancel stops playback. Renderers are torn down as on normal completion.
func (s *Session) Cancel() {
	s.cancel(context.Canceled)
}

// signal is the advance handler registered with the text renderer. Input
// arriving while the session is not waiting for it is dropped.
func (s *Session) signal() {
	// One advance per wait; later input in the same window is dropped.
	if !s.accepting.CompareAndSwap(true, false) {
		return
	}
	select {
	case s.advance <- struct{}{}:
	default:
	}
}

func (s *Session) drain() {
	for {
		select {
		case <-s.advance:
		default:
			return
		}
	}
}

func (s *Session) run() {
	ctx, span := s.seq.tracer.Start(s.ctx, "dialogue.play")
	span.SetAttributes(
		attribute.String("dialogue.id", string(s.dialogue.ID)),
		attribute.String("dialogue.session", s.id),
	)

	var unsubscribe func()
	defer func() {
		if unsubscribe != nil {
			unsubscribe()
		}
		if s.err != nil && !errors.Is(s.err, context.Canceled) && !errors.Is(s.err, ErrSuperseded) {
			span.SetStatus(codes.Error, s.err.Error())
		}
		span.End()
		s.finish()
	}()

	line := s.lines.NextLine()
	for {
		if err := s.show(ctx, line); err != nil {
			s.err = err
			return
		}
		if line.IsEnd() {
			return
		}

		// The first line is already visible; input is only listened to from here on.
		if unsubscribe == nil {
			unsubscribe = s.text.OnAdvance(s.signal)
		}

		s.drain()
		s.accepting.Store(true)
		select {
		case <-ctx.Done():
			s.accepting.Store(false)
			s.err = context.Cause(ctx)
			return
		case <-s.advance:
		}
		s.accepting.Store(false)

		s.seq.sound.Play(SoundDialogueAdvance)
		line = s.lines.NextLine()
	}
}

// show renders a line and runs its actions. The executor is called for every
// non-empty line, and for the terminal line only when it carries actions.
func (s *Session) show(ctx context.Context, line Line) error {
	if !line.IsEnd() {
		s.text.Render(SubstituteName(line.Text, s.username))
		s.speaker.SetSpeaker(line.Speaker)
		s.shown.Add(1)
	} else if len(line.Actions) == 0 {
		return nil
	}

	if err := s.actions.Run(ctx, line.Actions); err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return fmt.Errorf("dialogue %s: run actions: %w", s.dialogue.ID, err)
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}

func (s *Session) finish() {
	s.text.Destroy()
	s.seq.layers.RemoveFromLayer(LayerDialogue, s.text.Container())
	s.speaker.SetSpeaker(nil)
	s.cancel(nil)
	s.seq.release(s)

	result := Result{
		SessionID:  s.id,
		DialogueID: s.dialogue.ID,
		Lines:      s.LinesShown(),
		Err:        s.err,
		StartedAt:  s.startedAt,
		FinishedAt: time.Now(),
	}
	fields := []zap.Field{
		zap.String("session", s.id),
		zap.String("dialogue", string(s.dialogue.ID)),
		zap.Int("lines", result.Lines),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	}
	if s.err != nil {
		s.seq.logger.Info("dialogue ended early", append(fields, zap.Error(s.err))...)
	} else {
		s.seq.logger.Info("dialogue finished", fields...)
	}
	if s.seq.onComplete != nil {
		s.seq.onComplete(result)
	}
	close(s.done)
}
