package game

import "sync"

// Outbound event types pushed to a player's client.
const (
	EventDialogueText    = "dialogue:text"
	EventDialogueSpeaker = "dialogue:speaker"
	EventDialogueDestroy = "dialogue:destroy"
	EventDialogueDone    = "dialogue:done"
	EventDialogueError   = "dialogue:error"
	EventLayerAdd        = "layer:add"
	EventLayerRemove     = "layer:remove"
	EventLayerFadeIn     = "layer:fade-in"
	EventLayerFadeOut    = "layer:fade-out"
	EventSoundPlay       = "sound:play"
	EventFlagSet         = "flag:set"
	EventNotice          = "notice"
)

// OutboundMessage packages queued websocket events.
type OutboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Emitter delivers events to a player's client.
type Emitter interface {
	Emit(msg OutboundMessage)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(msg OutboundMessage)

func (f EmitterFunc) Emit(msg OutboundMessage) { f(msg) }

// EventLog is an Emitter that keeps every event in memory.
type EventLog struct {
	mu     sync.Mutex
	events []OutboundMessage
}

func (l *EventLog) Emit(msg OutboundMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, msg)
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []OutboundMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]OutboundMessage(nil), l.events...)
}

// Types returns the type of every recorded event, in order.
func (l *EventLog) Types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	types := make([]string, len(l.events))
	for i, e := range l.events {
		types[i] = e.Type
	}
	return types
}
