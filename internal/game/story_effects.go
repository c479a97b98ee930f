package game

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"SourceAcademyGame/internal/dialogue"
)

// Playback outcomes recorded in history.
const (
	OutcomeCompleted  = "completed"
	OutcomeCancelled  = "cancelled"
	OutcomeSuperseded = "superseded"
	OutcomeFailed     = "failed"
)

// OutcomeOf classifies a session's ending error.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, dialogue.ErrSuperseded):
		return OutcomeSuperseded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

// PlaybackRecord is one finished dialogue session.
type PlaybackRecord struct {
	SessionID  string
	PlayerID   string
	DialogueID string
	Lines      int
	Outcome    string
	FinishedAt time.Time
}

// HistoryStore persists finished sessions.
type HistoryStore interface {
	RecordPlayback(ctx context.Context, rec PlaybackRecord) error
}

type doneDTO struct {
	Session  string `json:"session"`
	Dialogue string `json:"dialogue"`
	Outcome  string `json:"outcome"`
	Lines    int    `json:"lines"`
	Error    string `json:"error,omitempty"`
}

// StoryEffects reacts to finished dialogue sessions for one player.
type StoryEffects struct {
	player  *Player
	history HistoryStore
	emit    Emitter
	logger  *zap.Logger
}

func NewStoryEffects(player *Player, history HistoryStore, emit Emitter, logger *zap.Logger) *StoryEffects {
	if player == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoryEffects{player: player, history: history, emit: emit, logger: logger}
}

// OnComplete records the session and tells the client it ended. It is
// meant to be installed as dialogue.Options.OnComplete.
func (e *StoryEffects) OnComplete(r dialogue.Result) {
	outcome := OutcomeOf(r.Err)
	if e.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rec := PlaybackRecord{
			SessionID:  r.SessionID,
			PlayerID:   e.player.ID,
			DialogueID: string(r.DialogueID),
			Lines:      r.Lines,
			Outcome:    outcome,
			FinishedAt: r.FinishedAt,
		}
		if err := e.history.RecordPlayback(ctx, rec); err != nil {
			e.logger.Error("record playback", zap.String("session", r.SessionID), zap.Error(err))
		}
	}
	if e.emit == nil {
		return
	}
	dto := doneDTO{
		Session:  r.SessionID,
		Dialogue: string(r.DialogueID),
		Outcome:  outcome,
		Lines:    r.Lines,
	}
	if outcome == OutcomeFailed {
		dto.Error = r.Err.Error()
	}
	e.emit.Emit(OutboundMessage{Type: EventDialogueDone, Payload: dto})
}
