package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"SourceAcademyGame/internal/storage/sqlite"
)

//go:generate go run ./cmd/webbuild

/* ------------------------------ Embeds ------------------------------ */

//go:embed web/index.html
var htmlIndex []byte

//go:embed web/client.js
var jsClient []byte

/* ------------------------------- HTTP ------------------------------- */

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Handler returns the HTTP routes wrapped with panic recovery and access
// logging.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(htmlIndex)
	}).Methods(http.MethodGet)
	r.HandleFunc("/client.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write(jsClient)
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(a, w, r)
	})
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/dialogues", a.handleDialogues).Methods(http.MethodGet)
	r.HandleFunc("/api/players/{id}", a.handlePlayer).Methods(http.MethodGet)

	accessLog := zap.NewStdLog(a.logger.Named("http")).Writer()
	return handlers.LoggingHandler(accessLog, handlers.RecoveryHandler()(r))
}

func (a *App) handleDialogues(w http.ResponseWriter, r *http.Request) {
	cp, version := a.provider.Snapshot()
	mapping := cp.Dialogues()
	out := dialogueListDTO{
		Checkpoint: cp.ID,
		Version:    version,
		Dialogues:  make([]dialogueSummaryDTO, 0, mapping.Len()),
	}
	for _, id := range mapping.IDs() {
		d, _ := mapping.Get(id)
		out.Dialogues = append(out.Dialogues, dialogueSummaryDTO{
			ID:    string(d.ID),
			Title: d.Title,
			Lines: d.LineCount(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePlayer reports a player's saved name, flags and recent playback.
func (a *App) handlePlayer(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorDTO{Message: "persistence disabled"})
		return
	}
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	name, err := a.store.DisplayName(ctx, id)
	if err != nil && !errors.Is(err, sqlite.ErrPlayerNotFound) {
		a.logger.Error("load player", zap.String("player", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorDTO{Message: "load player"})
		return
	}
	flags, err := a.store.Flags(ctx, id)
	if err != nil {
		a.logger.Error("load flags", zap.String("player", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorDTO{Message: "load flags"})
		return
	}
	records, err := a.store.ListPlayback(ctx, id, 50)
	if err != nil {
		a.logger.Error("load playback", zap.String("player", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorDTO{Message: "load playback"})
		return
	}
	if name == "" && len(flags) == 0 && len(records) == 0 {
		writeJSON(w, http.StatusNotFound, errorDTO{Message: "unknown player"})
		return
	}

	out := playerHistoryDTO{
		Player:   id,
		Name:     name,
		Online:   a.hub.Online(id),
		Flags:    flags,
		Playback: []playbackDTO{},
	}
	if out.Flags == nil {
		out.Flags = []string{}
	}
	for _, rec := range records {
		out.Playback = append(out.Playback, playbackDTO{
			Session:    rec.SessionID,
			Dialogue:   rec.DialogueID,
			Lines:      rec.Lines,
			Outcome:    rec.Outcome,
			FinishedAt: rec.FinishedAt.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
