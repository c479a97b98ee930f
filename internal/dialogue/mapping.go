// Package dialogue plays authored dialogues line by line against renderers,
// a sound system, a layer system and a game-action executor it does not own.
//
// Content is validated once when a checkpoint loads (NewMapping) and is
// read-only during playback.
package dialogue

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyID is returned when a dialogue has no id.
	ErrEmptyID = errors.New("dialogue: empty id")
	// ErrDuplicateID is returned when two dialogues share an id.
	ErrDuplicateID = errors.New("dialogue: duplicate id")
	// ErrNoParts is returned when a dialogue has no content.
	ErrNoParts = errors.New("dialogue: no parts")
	// ErrUnknownPart is returned when a line jumps to a part that does not exist.
	ErrUnknownPart = errors.New("dialogue: unknown part")
)

// Mapping is the validated set of dialogues for a checkpoint.
type Mapping struct {
	dialogues map[ID]*Dialogue
}

// NewMapping indexes and validates dialogues.
func NewMapping(dialogues []*Dialogue) (*Mapping, error) {
	m := &Mapping{dialogues: make(map[ID]*Dialogue, len(dialogues))}

	for _, d := range dialogues {
		if d == nil || d.ID == "" {
			return nil, ErrEmptyID
		}
		if _, exists := m.dialogues[d.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, d.ID)
		}
		if len(d.Parts) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoParts, d.ID)
		}
		m.dialogues[d.ID] = d
	}

	// Validate jumps
	for _, d := range dialogues {
		for part, lines := range d.Parts {
			for i, line := range lines {
				if line.Goto == "" {
					continue
				}
				if _, ok := d.Parts[line.Goto]; !ok {
					return nil, fmt.Errorf("%w: dialogue %s part %s line %d jumps to %s",
						ErrUnknownPart, d.ID, part, i, line.Goto)
				}
			}
		}
	}

	return m, nil
}

// EmptyMapping returns a mapping with no dialogues.
func EmptyMapping() *Mapping {
	return &Mapping{dialogues: map[ID]*Dialogue{}}
}

// Get returns a dialogue by id.
func (m *Mapping) Get(id ID) (*Dialogue, bool) {
	if m == nil {
		return nil, false
	}
	d, ok := m.dialogues[id]
	return d, ok
}

// Len returns the number of dialogues.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.dialogues)
}

// IDs returns all dialogue ids in sorted order.
func (m *Mapping) IDs() []ID {
	if m == nil {
		return nil
	}
	ids := make([]ID, 0, len(m.dialogues))
	for id := range m.dialogues {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
