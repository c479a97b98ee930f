package game

import (
	"go.uber.org/zap"

	"SourceAcademyGame/internal/dialogue"
)

// SoundAssets maps sound keys to the asset paths served to clients.
var SoundAssets = map[string]string{
	dialogue.SoundDialogueAdvance: "/assets/sounds/dialogue-advance.mp3",
	"notification":                "/assets/sounds/notification.mp3",
	"objectiveComplete":           "/assets/sounds/objective-complete.mp3",
	"menuSelect":                  "/assets/sounds/menu-select.mp3",
}

type soundDTO struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// SoundManager tells the client which sounds to play. Playback is
// fire-and-forget.
type SoundManager struct {
	emit   Emitter
	assets map[string]string
	logger *zap.Logger
}

func NewSoundManager(emit Emitter, logger *zap.Logger) *SoundManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SoundManager{emit: emit, assets: SoundAssets, logger: logger}
}

// Play sends a sound to the client. Unknown keys are ignored.
func (m *SoundManager) Play(key string) {
	url, ok := m.assets[key]
	if !ok {
		m.logger.Warn("unknown sound", zap.String("key", key))
		return
	}
	m.emit.Emit(OutboundMessage{Type: EventSoundPlay, Payload: soundDTO{Key: key, URL: url}})
}

// Known reports whether a sound key exists.
func (m *SoundManager) Known(key string) bool {
	_, ok := m.assets[key]
	return ok
}
