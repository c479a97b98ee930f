package dialogue

import "strings"

// ID uniquely identifies an authored dialogue within a checkpoint.
type ID string

// ActionID names a game action attached to a dialogue line.
type ActionID string

// PartName labels a section of lines inside a dialogue. Lines can jump
// between parts with Goto.
type PartName string

// StartPart is the part playback begins in.
const StartPart PartName = "0"

// NamePlaceholder is replaced with the player's username in rendered text.
const NamePlaceholder = "{name}"

// SpeakerYou is the speaker id shown as the player's own name.
const SpeakerYou = "you"

// SpeakerPosition controls where a speaker portrait is drawn.
type SpeakerPosition string

const (
	PositionLeft   SpeakerPosition = "left"
	PositionMiddle SpeakerPosition = "middle"
	PositionRight  SpeakerPosition = "right"
)

// SpeakerDetail describes who is talking on a line.
type SpeakerDetail struct {
	SpeakerID  string          `json:"speakerId" yaml:"id"`
	Expression string          `json:"expression,omitempty" yaml:"expression,omitempty"`
	Position   SpeakerPosition `json:"position,omitempty" yaml:"position,omitempty"`
}

// Line is one step of a dialogue. An empty Text marks the end of playback.
type Line struct {
	Text    string         `json:"line" yaml:"line"`
	Speaker *SpeakerDetail `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	Actions []ActionID     `json:"actions,omitempty" yaml:"actions,omitempty"`
	Goto    PartName       `json:"goto,omitempty" yaml:"goto,omitempty"`
}

// IsEnd reports whether the line terminates playback.
func (l Line) IsEnd() bool {
	return l.Text == ""
}

// Dialogue is authored content keyed by ID. It is owned by the checkpoint
// that loaded it and never mutated during playback.
type Dialogue struct {
	ID    ID
	Title string
	Parts map[PartName][]Line
	Order []PartName // Authoring order of parts
}

// FirstPart returns the part playback starts in: StartPart when present,
// otherwise the first authored part.
func (d *Dialogue) FirstPart() PartName {
	if _, ok := d.Parts[StartPart]; ok {
		return StartPart
	}
	if len(d.Order) > 0 {
		return d.Order[0]
	}
	return StartPart
}

// LineCount returns the number of authored lines across all parts.
func (d *Dialogue) LineCount() int {
	n := 0
	for _, lines := range d.Parts {
		n += len(lines)
	}
	return n
}

// SubstituteName replaces every name placeholder in text with username.
func SubstituteName(text, username string) string {
	if !strings.Contains(text, NamePlaceholder) {
		return text
	}
	return strings.ReplaceAll(text, NamePlaceholder, username)
}
