package game

import (
	"sort"
	"strings"
	"sync"
)

// DefaultPlayerName is used when a client does not send a display name.
const DefaultPlayerName = "Anon"

// Player is a connected account. Flags record story progress set by
// dialogue actions.
type Player struct {
	ID   string
	Name string

	mu    sync.Mutex
	flags map[string]bool
}

// NewPlayer creates a player; an empty name falls back to DefaultPlayerName.
func NewPlayer(id, name string) *Player {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPlayerName
	}
	return &Player{ID: id, Name: name, flags: make(map[string]bool)}
}

// SetFlag marks a flag and reports whether it was newly set.
func (p *Player) SetFlag(flag string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flags[flag] {
		return false
	}
	p.flags[flag] = true
	return true
}

// HasFlag reports whether a flag is set.
func (p *Player) HasFlag(flag string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags[flag]
}

// Flags returns the set flags in sorted order.
func (p *Player) Flags() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.flags))
	for flag := range p.flags {
		out = append(out, flag)
	}
	sort.Strings(out)
	return out
}

// Hub tracks connected players.
type Hub struct {
	Players map[string]*Player
	Mu      sync.Mutex
}

func NewHub() *Hub { return &Hub{Players: map[string]*Player{}} }

// Join registers a player. It returns false when the id is already connected.
func (h *Hub) Join(p *Player) bool {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	if _, exists := h.Players[p.ID]; exists {
		return false
	}
	h.Players[p.ID] = p
	return true
}

// Leave removes a player.
func (h *Hub) Leave(id string) {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	delete(h.Players, id)
}

// Online reports whether a player with id is connected.
func (h *Hub) Online(id string) bool {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	_, ok := h.Players[id]
	return ok
}

// Count returns the number of connected players.
func (h *Hub) Count() int {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return len(h.Players)
}
