// Package checkpoint loads authored game checkpoints (dialogues and the
// actions their lines trigger) from YAML files.
package checkpoint

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"SourceAcademyGame/internal/dialogue"
	"SourceAcademyGame/internal/game"
)

var (
	// ErrNoID is returned when a checkpoint file has no id.
	ErrNoID = errors.New("checkpoint: missing id")
	// ErrUndefinedAction is returned when a line references an action the
	// checkpoint does not define.
	ErrUndefinedAction = errors.New("checkpoint: undefined action")
	// ErrUnsupportedKind is returned for an action kind no executor handles.
	ErrUnsupportedKind = errors.New("checkpoint: unsupported action kind")
	// ErrDuplicatePart is returned when a dialogue names a part twice.
	ErrDuplicatePart = errors.New("checkpoint: duplicate part")
)

type fileLine struct {
	Line    string                  `yaml:"line"`
	Speaker *dialogue.SpeakerDetail `yaml:"speaker,omitempty"`
	Actions []string                `yaml:"actions,omitempty"`
	Goto    string                  `yaml:"goto,omitempty"`
}

type filePart struct {
	Name  string     `yaml:"name"`
	Lines []fileLine `yaml:"lines"`
}

type fileDialogue struct {
	ID    string     `yaml:"id"`
	Title string     `yaml:"title"`
	Parts []filePart `yaml:"parts"`
	// Lines is shorthand for a dialogue with a single part.
	Lines []fileLine `yaml:"lines,omitempty"`
}

type file struct {
	ID        string           `yaml:"id"`
	Title     string           `yaml:"title"`
	Actions   []game.ActionDef `yaml:"actions"`
	Dialogues []fileDialogue   `yaml:"dialogues"`
}

// Checkpoint is a validated, read-only checkpoint.
type Checkpoint struct {
	ID      string
	Title   string
	Source  string
	mapping *dialogue.Mapping
	actions []game.ActionDef
}

// Dialogues returns the checkpoint's dialogue mapping.
func (c *Checkpoint) Dialogues() *dialogue.Mapping {
	return c.mapping
}

// Actions returns the checkpoint's action definitions.
func (c *Checkpoint) Actions() []game.ActionDef {
	return append([]game.ActionDef(nil), c.actions...)
}

// Load reads and validates a checkpoint file.
func Load(path string) (*Checkpoint, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %q: %w", cleanPath, err)
	}
	cp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %q: %w", cleanPath, err)
	}
	cp.Source = cleanPath
	return cp, nil
}

// Parse decodes and validates checkpoint YAML. Unknown fields are rejected.
func Parse(data []byte) (*Checkpoint, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if strings.TrimSpace(f.ID) == "" {
		return nil, ErrNoID
	}

	for _, a := range f.Actions {
		if !game.IsBuiltinKind(a.Kind) {
			return nil, fmt.Errorf("%w: %s (action %s)", ErrUnsupportedKind, a.Kind, a.ID)
		}
	}
	// Line actions are checked against an executor with every built-in kind
	// registered; its constructor also catches duplicate ids.
	exec, err := game.NewPlayerExecutor(f.Actions, game.PlayerActions{})
	if err != nil {
		return nil, err
	}

	dialogues := make([]*dialogue.Dialogue, 0, len(f.Dialogues))
	for _, fd := range f.Dialogues {
		d, err := convertDialogue(fd, exec)
		if err != nil {
			return nil, err
		}
		dialogues = append(dialogues, d)
	}
	mapping, err := dialogue.NewMapping(dialogues)
	if err != nil {
		return nil, err
	}

	return &Checkpoint{
		ID:      f.ID,
		Title:   f.Title,
		mapping: mapping,
		actions: f.Actions,
	}, nil
}

func convertDialogue(fd fileDialogue, exec *game.Executor) (*dialogue.Dialogue, error) {
	parts := fd.Parts
	if len(fd.Lines) > 0 {
		parts = append([]filePart{{Name: string(dialogue.StartPart), Lines: fd.Lines}}, parts...)
	}

	d := &dialogue.Dialogue{
		ID:    dialogue.ID(fd.ID),
		Title: fd.Title,
		Parts: make(map[dialogue.PartName][]dialogue.Line, len(parts)),
	}
	for i, fp := range parts {
		name := dialogue.PartName(fp.Name)
		if name == "" {
			name = dialogue.PartName(fmt.Sprint(i))
		}
		if _, exists := d.Parts[name]; exists {
			return nil, fmt.Errorf("%w: dialogue %s part %s", ErrDuplicatePart, fd.ID, name)
		}
		lines := make([]dialogue.Line, len(fp.Lines))
		for j, fl := range fp.Lines {
			line := dialogue.Line{
				Text:    fl.Line,
				Speaker: fl.Speaker,
				Goto:    dialogue.PartName(fl.Goto),
			}
			for _, a := range fl.Actions {
				line.Actions = append(line.Actions, dialogue.ActionID(a))
			}
			if err := exec.Validate(line.Actions); err != nil {
				return nil, fmt.Errorf("%w: dialogue %s part %s line %d: %w", ErrUndefinedAction, fd.ID, name, j, err)
			}
			lines[j] = line
		}
		d.Parts[name] = lines
		d.Order = append(d.Order, name)
	}
	return d, nil
}
