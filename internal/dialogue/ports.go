package dialogue

import "context"

// LayerID names an engine-managed rendering group.
type LayerID string

// LayerDialogue is the layer dialogue boxes are added to.
const LayerDialogue LayerID = "Dialogue"

// SoundDialogueAdvance is played each time the player advances a line.
const SoundDialogueAdvance = "dialogueAdvance"

// Container is an opaque handle to something a renderer draws into.
type Container interface {
	ContainerID() string
}

// TextRenderer draws dialogue text and reports advance input (the pointer
// being released on the dialogue box).
type TextRenderer interface {
	Container() Container
	Render(text string)
	Destroy()
	// OnAdvance registers fn for advance input and returns a function that
	// removes the registration.
	OnAdvance(fn func()) (unsubscribe func())
}

// SpeakerRenderer shows who is speaking. A nil detail hides the speaker.
type SpeakerRenderer interface {
	SetSpeaker(detail *SpeakerDetail)
}

// Stage builds fresh renderers for each playback session.
type Stage interface {
	NewTextRenderer() TextRenderer
	NewSpeakerRenderer(username string) SpeakerRenderer
}

// ActionExecutor runs a batch of game actions and returns when all finished.
type ActionExecutor interface {
	Run(ctx context.Context, ids []ActionID) error
}

// Layers is the layering system dialogue containers are attached to.
type Layers interface {
	AddToLayer(layer LayerID, c Container)
	RemoveFromLayer(layer LayerID, c Container)
	FadeIn(layer LayerID)
}

// SoundPlayer plays a sound without waiting for it.
type SoundPlayer interface {
	Play(key string)
}

// NoOpActions is an ActionExecutor that does nothing.
type NoOpActions struct{}

func (NoOpActions) Run(ctx context.Context, ids []ActionID) error { return ctx.Err() }

// NoOpSound is a SoundPlayer that does nothing.
type NoOpSound struct{}

func (NoOpSound) Play(key string) {}
