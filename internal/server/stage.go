package server

import (
	"fmt"
	"sync"

	"SourceAcademyGame/internal/dialogue"
	"SourceAcademyGame/internal/game"
)

// wsStage renders dialogue boxes by sending events to one client. Advance
// messages from that client are fanned out to the subscribed boxes.
type wsStage struct {
	emit game.Emitter
	subs dialogue.Subscribers

	mu    sync.Mutex
	boxes int
}

func newWSStage(emit game.Emitter) *wsStage {
	return &wsStage{emit: emit}
}

func (s *wsStage) NewTextRenderer() dialogue.TextRenderer {
	s.mu.Lock()
	s.boxes++
	id := fmt.Sprintf("box-%d", s.boxes)
	s.mu.Unlock()
	return &wsTextBox{stage: s, id: id}
}

func (s *wsStage) NewSpeakerRenderer(username string) dialogue.SpeakerRenderer {
	s.mu.Lock()
	box := fmt.Sprintf("box-%d", s.boxes)
	s.mu.Unlock()
	return &wsSpeaker{emit: s.emit, box: box, username: username}
}

// advance delivers a client advance to every current subscriber.
func (s *wsStage) advance() {
	s.subs.Notify()
}

func (s *wsStage) subscribers() int {
	return s.subs.Len()
}

type wsTextBox struct {
	stage *wsStage
	id    string
}

type boxContainer string

func (c boxContainer) ContainerID() string { return string(c) }

func (b *wsTextBox) Container() dialogue.Container { return boxContainer(b.id) }

func (b *wsTextBox) Render(text string) {
	b.stage.emit.Emit(game.OutboundMessage{Type: game.EventDialogueText, Payload: textDTO{Box: b.id, Text: text}})
}

func (b *wsTextBox) Destroy() {
	b.stage.emit.Emit(game.OutboundMessage{Type: game.EventDialogueDestroy, Payload: boxDTO{Box: b.id}})
}

func (b *wsTextBox) OnAdvance(fn func()) func() {
	return b.stage.subs.Subscribe(fn)
}

type wsSpeaker struct {
	emit     game.Emitter
	box      string
	username string
}

func (r *wsSpeaker) SetSpeaker(detail *dialogue.SpeakerDetail) {
	if detail == nil {
		r.emit.Emit(game.OutboundMessage{Type: game.EventDialogueSpeaker, Payload: speakerDTO{Box: r.box, Hidden: true}})
		return
	}
	name := detail.SpeakerID
	if name == dialogue.SpeakerYou {
		name = r.username
	}
	r.emit.Emit(game.OutboundMessage{Type: game.EventDialogueSpeaker, Payload: speakerDTO{
		Box:        r.box,
		ID:         detail.SpeakerID,
		Name:       name,
		Expression: detail.Expression,
		Position:   string(detail.Position),
	}})
}
