package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SourceAcademyGame/internal/dialogue"
)

var (
	// ErrUnknownAction is returned when a line references an undefined action.
	ErrUnknownAction = errors.New("game: unknown action")
	// ErrUnknownKind is returned when an action's kind has no handler.
	ErrUnknownKind = errors.New("game: unknown action kind")
	// ErrDuplicateAction is returned when two actions share an id.
	ErrDuplicateAction = errors.New("game: duplicate action")
	// ErrBadParams is returned when an action is missing a required parameter.
	ErrBadParams = errors.New("game: bad action params")
)

// ActionKind selects the handler an action runs with.
type ActionKind string

const (
	// KindFlag sets a story flag on the player (param "flag").
	KindFlag ActionKind = "flag"
	// KindSound plays a sound (param "key").
	KindSound ActionKind = "sound"
	// KindLayer fades a layer (params "layer", "mode" = in|out).
	KindLayer ActionKind = "layer"
	// KindWait pauses the batch (param "duration", e.g. "500ms").
	KindWait ActionKind = "wait"
	// KindLog writes a log line (param "message").
	KindLog ActionKind = "log"
)

// BuiltinKinds lists the kinds every player executor handles.
var BuiltinKinds = []ActionKind{KindFlag, KindSound, KindLayer, KindWait, KindLog}

// IsBuiltinKind reports whether kind is one of BuiltinKinds.
func IsBuiltinKind(kind ActionKind) bool {
	for _, k := range BuiltinKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ActionDef is an authored game action.
type ActionDef struct {
	ID     dialogue.ActionID `yaml:"id" json:"id"`
	Kind   ActionKind        `yaml:"kind" json:"kind"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Handler performs one action.
type Handler func(ctx context.Context, def ActionDef) error

// FlagStore persists story flags.
type FlagStore interface {
	SetFlag(ctx context.Context, playerID, flag string) error
}

// Executor runs batches of actions. All actions of a batch start together
// and Run returns once every one of them finished; the first failure
// cancels the others.
type Executor struct {
	defs     map[dialogue.ActionID]ActionDef
	handlers map[ActionKind]Handler
	logger   *zap.Logger
}

// NewExecutor indexes action definitions. Handlers are added with Register.
func NewExecutor(defs []ActionDef, logger *zap.Logger) (*Executor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		defs:     make(map[dialogue.ActionID]ActionDef, len(defs)),
		handlers: make(map[ActionKind]Handler),
		logger:   logger,
	}
	for _, def := range defs {
		if _, exists := e.defs[def.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAction, def.ID)
		}
		e.defs[def.ID] = def
	}
	return e, nil
}

// Register installs the handler for a kind, replacing any previous one.
func (e *Executor) Register(kind ActionKind, h Handler) {
	e.handlers[kind] = h
}

// Run executes a batch and waits for all of it.
func (e *Executor) Run(ctx context.Context, ids []dialogue.ActionID) error {
	if len(ids) == 0 {
		return ctx.Err()
	}

	defs := make([]ActionDef, 0, len(ids))
	for _, id := range ids {
		def, ok := e.defs[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAction, id)
		}
		if _, ok := e.handlers[def.Kind]; !ok {
			return fmt.Errorf("%w: %s (action %s)", ErrUnknownKind, def.Kind, id)
		}
		defs = append(defs, def)
	}

	ctx, span := otel.Tracer("SourceAcademyGame/internal/game").Start(ctx, "game.actions")
	defer span.End()
	span.SetAttributes(attribute.Int("actions.count", len(defs)))

	g, gctx := errgroup.WithContext(ctx)
	for _, def := range defs {
		handler := e.handlers[def.Kind]
		g.Go(func() error {
			if err := handler(gctx, def); err != nil {
				return fmt.Errorf("action %q: %w", def.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Warn("action batch failed", zap.Error(err))
		return err
	}
	e.logger.Debug("action batch done", zap.Int("count", len(defs)))
	return nil
}

// Validate checks that every id is defined and has a handler.
func (e *Executor) Validate(ids []dialogue.ActionID) error {
	for _, id := range ids {
		def, ok := e.defs[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAction, id)
		}
		if _, ok := e.handlers[def.Kind]; !ok {
			return fmt.Errorf("%w: %s (action %s)", ErrUnknownKind, def.Kind, id)
		}
	}
	return nil
}

// PlayerActions wires the built-in action kinds to a player's managers.
type PlayerActions struct {
	Player *Player
	Flags  FlagStore
	Sound  *SoundManager
	Layers *LayerManager
	Emit   Emitter
	Logger *zap.Logger
}

// NewPlayerExecutor returns an executor with every built-in kind registered.
func NewPlayerExecutor(defs []ActionDef, pa PlayerActions) (*Executor, error) {
	if pa.Logger == nil {
		pa.Logger = zap.NewNop()
	}
	e, err := NewExecutor(defs, pa.Logger)
	if err != nil {
		return nil, err
	}
	e.Register(KindFlag, pa.setFlag)
	e.Register(KindSound, pa.playSound)
	e.Register(KindLayer, pa.fadeLayer)
	e.Register(KindWait, waitAction)
	e.Register(KindLog, pa.logMessage)
	return e, nil
}

func requireParam(def ActionDef, key string) (string, error) {
	v := strings.TrimSpace(def.Params[key])
	if v == "" {
		return "", fmt.Errorf("%w: %s needs %q", ErrBadParams, def.ID, key)
	}
	return v, nil
}

type flagDTO struct {
	Flag string `json:"flag"`
}

func (pa PlayerActions) setFlag(ctx context.Context, def ActionDef) error {
	flag, err := requireParam(def, "flag")
	if err != nil {
		return err
	}
	if pa.Player.HasFlag(flag) {
		return nil
	}
	// Persist before marking the player so a failed write is retried on the
	// next run.
	if pa.Flags != nil {
		if err := pa.Flags.SetFlag(ctx, pa.Player.ID, flag); err != nil {
			return fmt.Errorf("persist flag %s: %w", flag, err)
		}
	}
	if !pa.Player.SetFlag(flag) {
		return nil
	}
	if pa.Emit != nil {
		pa.Emit.Emit(OutboundMessage{Type: EventFlagSet, Payload: flagDTO{Flag: flag}})
	}
	return nil
}

func (pa PlayerActions) playSound(ctx context.Context, def ActionDef) error {
	key, err := requireParam(def, "key")
	if err != nil {
		return err
	}
	if pa.Sound != nil {
		pa.Sound.Play(key)
	}
	return nil
}

func (pa PlayerActions) fadeLayer(ctx context.Context, def ActionDef) error {
	layer, err := requireParam(def, "layer")
	if err != nil {
		return err
	}
	if !IsKnownLayer(dialogue.LayerID(layer)) {
		return fmt.Errorf("%w: %s layer %q", ErrBadParams, def.ID, layer)
	}
	if pa.Layers == nil {
		return nil
	}
	switch strings.ToLower(def.Params["mode"]) {
	case "", "in":
		pa.Layers.FadeIn(dialogue.LayerID(layer))
	case "out":
		pa.Layers.FadeOut(dialogue.LayerID(layer))
	default:
		return fmt.Errorf("%w: %s mode %q", ErrBadParams, def.ID, def.Params["mode"])
	}
	return nil
}

func waitAction(ctx context.Context, def ActionDef) error {
	raw, err := requireParam(def, "duration")
	if err != nil {
		return err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: %s duration: %v", ErrBadParams, def.ID, err)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (pa PlayerActions) logMessage(ctx context.Context, def ActionDef) error {
	pa.Logger.Info("dialogue action",
		zap.String("action", string(def.ID)),
		zap.String("player", pa.Player.ID),
		zap.String("message", def.Params["message"]))
	return nil
}
