package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrSessionActive is returned by Start under PolicyReject while another
	// session is still playing.
	ErrSessionActive = errors.New("dialogue: session already active")
	// ErrSuperseded ends a session that was replaced by a newer one under
	// PolicyReplace.
	ErrSuperseded = errors.New("dialogue: session superseded")
	// ErrNoStage is returned when the sequencer has nowhere to render.
	ErrNoStage = errors.New("dialogue: no stage configured")
)

// Policy decides what Start does while a session is already playing.
type Policy int

const (
	// PolicyReject refuses the new session with ErrSessionActive.
	PolicyReject Policy = iota
	// PolicyReplace ends the running session with ErrSuperseded and starts
	// the new one in its place.
	PolicyReplace
	// PolicyQueue waits for the running session to finish first.
	PolicyQueue
)

func (p Policy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyReplace:
		return "replace"
	case PolicyQueue:
		return "queue"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a policy name ("reject", "replace", "queue").
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return PolicyReject, nil
	case "replace":
		return PolicyReplace, nil
	case "queue":
		return PolicyQueue, nil
	default:
		return PolicyReject, fmt.Errorf("dialogue: unknown policy %q", s)
	}
}

// Options wires a Sequencer to its collaborators. Stage is required; the
// rest fall back to no-op implementations.
type Options struct {
	Stage      Stage
	Layers     Layers
	Actions    ActionExecutor
	Sound      SoundPlayer
	Generators GeneratorFactory
	Policy     Policy
	Logger     *zap.Logger
	// OnComplete is called once for every session after teardown.
	OnComplete func(Result)
}

// Sequencer plays dialogues from its mapping one session at a time.
type Sequencer struct {
	stage      Stage
	layers     Layers
	sound      SoundPlayer
	generators GeneratorFactory
	policy     Policy
	logger     *zap.Logger
	tracer     trace.Tracer
	onComplete func(Result)

	mu       sync.Mutex
	mapping  *Mapping
	actions  ActionExecutor
	username string
	current  *Session
}

type noOpLayers struct{}

func (noOpLayers) AddToLayer(LayerID, Container)      {}
func (noOpLayers) RemoveFromLayer(LayerID, Container) {}
func (noOpLayers) FadeIn(LayerID)                     {}

// NewSequencer creates a sequencer with an empty mapping and no username.
func NewSequencer(opts Options) *Sequencer {
	s := &Sequencer{
		stage:      opts.Stage,
		layers:     opts.Layers,
		actions:    opts.Actions,
		sound:      opts.Sound,
		generators: opts.Generators,
		policy:     opts.Policy,
		logger:     opts.Logger,
		onComplete: opts.OnComplete,
		mapping:    EmptyMapping(),
		tracer:     otel.Tracer("SourceAcademyGame/internal/dialogue"),
	}
	if s.layers == nil {
		s.layers = noOpLayers{}
	}
	if s.actions == nil {
		s.actions = NoOpActions{}
	}
	if s.sound == nil {
		s.sound = NoOpSound{}
	}
	if s.generators == nil {
		s.generators = NewLineSource
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Initialise sets the dialogues and the username used for placeholder
// substitution. It must be called before Start or Play can find anything.
func (s *Sequencer) Initialise(mapping *Mapping, username string) {
	if mapping == nil {
		mapping = EmptyMapping()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping = mapping
	s.username = norm.NFC.String(strings.TrimSpace(username))
	s.logger.Debug("sequencer initialised",
		zap.Int("dialogues", mapping.Len()),
		zap.String("username", s.username))
}

// Reload swaps the dialogues and the action executor together. Sessions
// already playing keep the ones they started with. A nil executor runs
// nothing.
func (s *Sequencer) Reload(mapping *Mapping, actions ActionExecutor) {
	if mapping == nil {
		mapping = EmptyMapping()
	}
	if actions == nil {
		actions = NoOpActions{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping = mapping
	s.actions = actions
	s.logger.Debug("sequencer reloaded", zap.Int("dialogues", mapping.Len()))
}

// Username returns the name substituted into lines.
func (s *Sequencer) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Mapping returns the dialogues the sequencer plays from.
func (s *Sequencer) Mapping() *Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping
}

// Current returns the playing session, or nil when idle.
func (s *Sequencer) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Policy returns the re-entry policy.
func (s *Sequencer) Policy() Policy {
	return s.policy
}

// Play starts the dialogue and blocks until it has been played through.
// An unknown id returns nil immediately without touching any renderer.
func (s *Sequencer) Play(ctx context.Context, id ID) error {
	session, err := s.Start(ctx, id)
	if err != nil || session == nil {
		return err
	}
	return session.Wait()
}

// Start opens a playback session and shows its first line in the
// background. It returns (nil, nil) when id is not in the mapping.
func (s *Sequencer) Start(ctx context.Context, id ID) (*Session, error) {
	s.mu.Lock()
	d, ok := s.mapping.Get(id)
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("dialogue not found", zap.String("dialogue", string(id)))
		return nil, nil
	}
	if s.stage == nil {
		s.mu.Unlock()
		return nil, ErrNoStage
	}

	for s.current != nil {
		prev := s.current
		switch s.policy {
		case PolicyReplace:
			s.mu.Unlock()
			s.logger.Info("superseding session",
				zap.String("session", prev.ID()),
				zap.String("dialogue", string(prev.dialogue.ID)),
				zap.String("next", string(id)))
			prev.cancel(ErrSuperseded)
			<-prev.Done()
		case PolicyQueue:
			s.mu.Unlock()
			select {
			case <-prev.Done():
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		default:
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrSessionActive, prev.dialogue.ID)
		}
		s.mu.Lock()
	}

	session := s.openLocked(ctx, d)
	s.current = session
	s.mu.Unlock()

	go session.run()
	return session, nil
}

// CancelCurrent cancels the playing session, if any.
func (s *Sequencer) CancelCurrent() bool {
	session := s.Current()
	if session == nil {
		return false
	}
	session.Cancel()
	return true
}

// openLocked builds the renderers for a new session and attaches the text
// container to the dialogue layer. The session keeps the current executor
// for its whole run.
func (s *Sequencer) openLocked(ctx context.Context, d *Dialogue) *Session {
	session := newSession(ctx, s, d, s.username)
	session.actions = s.actions
	session.text = s.stage.NewTextRenderer()
	session.lines = s.generators(d)
	session.speaker = s.stage.NewSpeakerRenderer(s.username)

	s.layers.AddToLayer(LayerDialogue, session.text.Container())
	s.layers.FadeIn(LayerDialogue)

	s.logger.Info("dialogue started",
		zap.String("session", session.ID()),
		zap.String("dialogue", string(d.ID)))
	return session
}

// release clears the slot if it still holds session.
func (s *Sequencer) release(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == session {
		s.current = nil
	}
}
