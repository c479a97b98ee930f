package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SourceAcademyGame/internal/dialogue"
	"SourceAcademyGame/internal/game"
)

const sample = `
id: cp-test
title: Test
actions:
  - id: wave
    kind: sound
    params: {key: notification}
dialogues:
  - id: d1
    lines:
      - line: "Hello {name}"
        speaker: {id: scottie, expression: happy}
        actions: [wave]
      - line: ""
  - id: d2
    parts:
      - name: "0"
        lines:
          - line: a
            goto: side
      - name: side
        lines:
          - line: b
`

func TestParse(t *testing.T) {
	cp, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "cp-test", cp.ID)
	assert.Equal(t, []dialogue.ID{"d1", "d2"}, cp.Dialogues().IDs())
	require.Len(t, cp.Actions(), 1)
	assert.Equal(t, game.KindSound, cp.Actions()[0].Kind)

	d1, ok := cp.Dialogues().Get("d1")
	require.True(t, ok)
	lines := d1.Parts[dialogue.StartPart]
	require.Len(t, lines, 2)
	assert.Equal(t, "scottie", lines[0].Speaker.SpeakerID)
	assert.Equal(t, []dialogue.ActionID{"wave"}, lines[0].Actions)

	d2, _ := cp.Dialogues().Get("d2")
	assert.Equal(t, []dialogue.PartName{"0", "side"}, d2.Order)
	g := dialogue.NewGenerator(d2)
	assert.Equal(t, "a", g.NextLine().Text)
	assert.Equal(t, "b", g.NextLine().Text)
	assert.True(t, g.NextLine().IsEnd())
}

func TestParseErrors(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want error
	}{
		"missing id": {
			doc:  "title: x\n",
			want: ErrNoID,
		},
		"undefined action": {
			doc:  "id: c\ndialogues:\n  - id: d\n    lines:\n      - line: a\n        actions: [nope]\n",
			want: ErrUndefinedAction,
		},
		"unsupported kind": {
			doc:  "id: c\nactions:\n  - id: a\n    kind: teleport\n",
			want: ErrUnsupportedKind,
		},
		"duplicate action": {
			doc:  "id: c\nactions:\n  - {id: a, kind: log}\n  - {id: a, kind: log}\n",
			want: game.ErrDuplicateAction,
		},
		"duplicate dialogue": {
			doc:  "id: c\ndialogues:\n  - {id: d, lines: [{line: a}]}\n  - {id: d, lines: [{line: b}]}\n",
			want: dialogue.ErrDuplicateID,
		},
		"duplicate part": {
			doc:  "id: c\ndialogues:\n  - id: d\n    parts:\n      - {name: x, lines: [{line: a}]}\n      - {name: x, lines: [{line: b}]}\n",
			want: ErrDuplicatePart,
		},
		"bad goto": {
			doc:  "id: c\ndialogues:\n  - id: d\n    lines:\n      - {line: a, goto: nowhere}\n",
			want: dialogue.ErrUnknownPart,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := Parse([]byte("id: c\nsurprise: true\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Parse([]byte(cases["undefined action"].doc))
	assert.ErrorIs(t, err, game.ErrUnknownAction)
	assert.ErrorContains(t, err, "dialogue d part 0 line 0")
}

func TestLoadShippedCheckpoint(t *testing.T) {
	cp, err := Load(filepath.Join("..", "..", "configs", "checkpoint.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "chapter-1", cp.ID)

	intro, ok := cp.Dialogues().Get("intro")
	require.True(t, ok)

	// Walk the whole dialogue and collect the rendered text.
	g := dialogue.NewGenerator(intro)
	var texts []string
	for line := g.NextLine(); !line.IsEnd(); line = g.NextLine() {
		texts = append(texts, line.Text)
	}
	assert.Len(t, texts, 5)
	assert.Equal(t, "Welcome aboard, {name}.", texts[4])
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProviderReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.yaml")
	writeFile(t, path, sample)

	p, err := NewProvider(path, nil)
	require.NoError(t, err)
	first, version := p.Snapshot()
	assert.Equal(t, uint64(1), version)

	writeFile(t, path, "id: [broken")
	assert.Error(t, p.Reload())
	assert.Same(t, first, p.Current())

	writeFile(t, path, "id: other\n")
	require.NoError(t, p.Reload())
	assert.Equal(t, "other", p.Current().ID)
	assert.Equal(t, 0, p.Current().Dialogues().Len())

	cp, version := p.Snapshot()
	assert.Same(t, p.Current(), cp)
	assert.Equal(t, uint64(2), version)
}

func TestNewProviderMissingFile(t *testing.T) {
	_, err := NewProvider(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.yaml")
	writeFile(t, path, sample)
	p, err := NewProvider(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, p) }()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, "id: rewritten\n")

	require.Eventually(t, func() bool { return p.Current().ID == "rewritten" }, 3*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
