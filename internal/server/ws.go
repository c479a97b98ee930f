package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"SourceAcademyGame/internal/checkpoint"
	"SourceAcademyGame/internal/dialogue"
	"SourceAcademyGame/internal/game"
	"SourceAcademyGame/internal/storage/sqlite"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Inbound message types.
const (
	msgDialoguePlay    = "dialogue:play"
	msgDialogueAdvance = "dialogue:advance"
	msgDialogueCancel  = "dialogue:cancel"
)

const sendBuffer = 64

// client is one websocket connection and the dialogue state behind it.
type client struct {
	app    *App
	conn   *websocket.Conn
	codec  codec
	player *game.Player
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	send   chan game.OutboundMessage

	stage   *wsStage
	layers  *game.LayerManager
	sound   *game.SoundManager
	seq     *dialogue.Sequencer
	version uint64
	plays   sync.WaitGroup
}

// Emit queues an event for the writer goroutine. Events emitted after the
// connection closed are dropped.
func (c *client) Emit(msg game.OutboundMessage) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	}
}

func (a *App) resolvePlayer(ctx context.Context, id, name string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = "p-" + uuid.NewString()
	}
	name = strings.TrimSpace(name)
	if a.store == nil {
		if name == "" {
			name = game.DefaultPlayerName
		}
		return id, name
	}
	if name != "" {
		if err := a.store.UpsertPlayer(ctx, id, name); err != nil {
			a.logger.Warn("save player", zap.String("player", id), zap.Error(err))
		}
		return id, name
	}
	stored, err := a.store.DisplayName(ctx, id)
	if err != nil {
		if !errors.Is(err, sqlite.ErrPlayerNotFound) {
			a.logger.Warn("load player", zap.String("player", id), zap.Error(err))
		}
		return id, game.DefaultPlayerName
	}
	return id, stored
}

func serveWS(a *App, w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cdc, err := codecByName(query.Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	playerID, name := a.resolvePlayer(r.Context(), query.Get("player"), query.Get("name"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("upgrade", zap.Error(err))
		return
	}

	player := game.NewPlayer(playerID, name)
	if !a.hub.Join(player) {
		frameType, data, err := cdc.Encode(game.OutboundMessage{
			Type:    game.EventDialogueError,
			Payload: errorDTO{Message: "player already connected"},
		})
		if err == nil {
			_ = conn.WriteMessage(frameType, data)
		}
		conn.Close()
		return
	}
	defer a.hub.Leave(playerID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{
		app:    a,
		conn:   conn,
		codec:  cdc,
		player: player,
		logger: a.logger.With(zap.String("player", playerID)),
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan game.OutboundMessage, sendBuffer),
	}
	c.stage = newWSStage(c)
	c.layers = game.NewLayerManager(c)
	c.sound = game.NewSoundManager(c, c.logger)
	if a.store != nil {
		flags, err := a.store.Flags(ctx, playerID)
		if err != nil {
			c.logger.Warn("load flags", zap.Error(err))
		}
		for _, flag := range flags {
			player.SetFlag(flag)
		}
	}

	var history game.HistoryStore
	if a.store != nil {
		history = a.store
	}
	effects := game.NewStoryEffects(player, history, c, c.logger)
	c.seq = dialogue.NewSequencer(dialogue.Options{
		Stage:      c.stage,
		Layers:     c.layers,
		Sound:      c.sound,
		Policy:     a.cfg.SessionPolicy(),
		Logger:     c.logger.Named("dialogue"),
		OnComplete: effects.OnComplete,
	})
	c.seq.Initialise(nil, player.Name)
	cp := c.refresh()

	go c.writeLoop()

	c.Emit(game.OutboundMessage{Type: game.EventNotice, Payload: welcomeDTO{
		Player:     playerID,
		Name:       player.Name,
		Checkpoint: cp.ID,
		Flags:      player.Flags(),
	}})
	c.logger.Info("player connected", zap.String("name", player.Name), zap.String("codec", cdc.Name()))

	go c.readLoop()

	<-ctx.Done()
	conn.Close()

	c.seq.CancelCurrent()
	c.plays.Wait()
	c.logger.Info("player disconnected")
}

// refresh picks up a reloaded checkpoint. Sessions already playing keep the
// dialogue and the actions they started with.
func (c *client) refresh() *checkpoint.Checkpoint {
	cp, version := c.app.provider.Snapshot()
	if version == c.version {
		return cp
	}
	var flags game.FlagStore
	if c.app.store != nil {
		flags = c.app.store
	}
	exec, err := game.NewPlayerExecutor(cp.Actions(), game.PlayerActions{
		Player: c.player,
		Flags:  flags,
		Sound:  c.sound,
		Layers: c.layers,
		Emit:   c,
		Logger: c.logger.Named("actions"),
	})
	if err != nil {
		// Parse already rejected duplicate actions, so this only happens
		// if the checkpoint was built by hand.
		c.logger.Error("build action executor", zap.Error(err))
		return cp
	}
	c.seq.Reload(cp.Dialogues(), exec)
	c.version = version
	return cp
}

func (c *client) writeLoop() {
	defer c.cancel()
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.send:
			frameType, data, err := c.codec.Encode(msg)
			if err != nil {
				c.logger.Error("encode event", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(frameType, data); err != nil {
				c.logger.Debug("write", zap.Error(err))
				return
			}
		}
	}
}

func (c *client) readLoop() {
	defer c.cancel()
	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		in, err := decodeInbound(frameType, data)
		if err != nil {
			c.logger.Warn("inbound", zap.Error(err))
			continue
		}
		c.handle(in)
	}
}

func (c *client) handle(in inboundMessage) {
	switch in.Type {
	case msgDialoguePlay:
		var payload playDTO
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			c.logger.Warn("invalid dialogue:play payload", zap.Error(err))
			return
		}
		c.refresh()
		c.play(dialogue.ID(payload.ID))
	case msgDialogueAdvance:
		c.stage.advance()
	case msgDialogueCancel:
		c.seq.CancelCurrent()
	default:
		c.logger.Warn("unknown message type", zap.String("type", in.Type))
	}
}

// play starts a dialogue without blocking the reader, which still has to
// deliver advances while the session runs or waits its turn.
func (c *client) play(id dialogue.ID) {
	c.plays.Add(1)
	go func() {
		defer c.plays.Done()
		session, err := c.seq.Start(c.ctx, id)
		if err != nil {
			if c.ctx.Err() == nil {
				c.Emit(game.OutboundMessage{Type: game.EventDialogueError, Payload: errorDTO{
					Dialogue: string(id),
					Message:  err.Error(),
				}})
			}
			return
		}
		if session == nil {
			c.logger.Debug("no such dialogue", zap.String("dialogue", string(id)))
			return
		}
		<-session.Done()
	}()
}
