package game

import (
	"sync"

	"SourceAcademyGame/internal/dialogue"
)

const (
	LayerBackground dialogue.LayerID = "Background"
	LayerCharacter  dialogue.LayerID = "Character"
	LayerDialogue                    = dialogue.LayerDialogue
	LayerSpeaker    dialogue.LayerID = "Speaker"
	LayerEffects    dialogue.LayerID = "Effects"
)

// KnownLayers lists the layers a client draws, back to front.
var KnownLayers = []dialogue.LayerID{LayerBackground, LayerCharacter, LayerDialogue, LayerSpeaker, LayerEffects}

// IsKnownLayer reports whether layer is one of KnownLayers.
func IsKnownLayer(layer dialogue.LayerID) bool {
	for _, l := range KnownLayers {
		if l == layer {
			return true
		}
	}
	return false
}

type layerState struct {
	containers []string
	visible    bool
}

type layerEventDTO struct {
	Layer     string `json:"layer"`
	Container string `json:"container,omitempty"`
}

// LayerManager keeps a player's layer state and mirrors changes to the client.
type LayerManager struct {
	mu     sync.Mutex
	layers map[dialogue.LayerID]*layerState
	emit   Emitter
}

func NewLayerManager(emit Emitter) *LayerManager {
	return &LayerManager{
		layers: make(map[dialogue.LayerID]*layerState),
		emit:   emit,
	}
}

func (m *LayerManager) stateLocked(layer dialogue.LayerID) *layerState {
	st, ok := m.layers[layer]
	if !ok {
		st = &layerState{}
		m.layers[layer] = st
	}
	return st
}

// AddToLayer attaches a container to a layer.
func (m *LayerManager) AddToLayer(layer dialogue.LayerID, c dialogue.Container) {
	m.mu.Lock()
	st := m.stateLocked(layer)
	st.containers = append(st.containers, c.ContainerID())
	m.mu.Unlock()
	m.emit.Emit(OutboundMessage{Type: EventLayerAdd, Payload: layerEventDTO{Layer: string(layer), Container: c.ContainerID()}})
}

// RemoveFromLayer detaches a container from a layer. Unknown containers
// are ignored.
func (m *LayerManager) RemoveFromLayer(layer dialogue.LayerID, c dialogue.Container) {
	id := c.ContainerID()
	m.mu.Lock()
	st, ok := m.layers[layer]
	removed := false
	if ok {
		kept := st.containers[:0]
		for _, existing := range st.containers {
			if existing == id {
				removed = true
				continue
			}
			kept = append(kept, existing)
		}
		st.containers = kept
	}
	m.mu.Unlock()
	if removed {
		m.emit.Emit(OutboundMessage{Type: EventLayerRemove, Payload: layerEventDTO{Layer: string(layer), Container: id}})
	}
}

// FadeIn makes a layer visible.
func (m *LayerManager) FadeIn(layer dialogue.LayerID) {
	m.setVisible(layer, true, EventLayerFadeIn)
}

// FadeOut hides a layer.
func (m *LayerManager) FadeOut(layer dialogue.LayerID) {
	m.setVisible(layer, false, EventLayerFadeOut)
}

func (m *LayerManager) setVisible(layer dialogue.LayerID, visible bool, event string) {
	m.mu.Lock()
	m.stateLocked(layer).visible = visible
	m.mu.Unlock()
	m.emit.Emit(OutboundMessage{Type: event, Payload: layerEventDTO{Layer: string(layer)}})
}

// Visible reports whether a layer is shown.
func (m *LayerManager) Visible(layer dialogue.LayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.layers[layer]
	return ok && st.visible
}

// Containers returns the containers attached to a layer.
func (m *LayerManager) Containers(layer dialogue.LayerID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.layers[layer]
	if !ok {
		return nil
	}
	return append([]string(nil), st.containers...)
}
