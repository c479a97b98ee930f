package dialogue

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestMappingIndex tests basic mapping construction and lookup
func TestMappingIndex(t *testing.T) {
	m, err := NewMapping([]*Dialogue{
		linear("b", "second", ""),
		linear("a", "first", ""),
	})
	if err != nil {
		t.Fatalf("NewMapping failed: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Expected 2 dialogues, got %d", m.Len())
	}
	if diff := cmp.Diff([]ID{"a", "b"}, m.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if _, ok := m.Get("a"); !ok {
		t.Error("dialogue a not found")
	}
	if _, ok := m.Get("zzz"); ok {
		t.Error("unexpected dialogue zzz")
	}
}

// TestMappingRejectsInvalidContent tests that bad dialogues are refused at load time
func TestMappingRejectsInvalidContent(t *testing.T) {
	cases := []struct {
		name      string
		dialogues []*Dialogue
		want      error
	}{
		{
			name:      "empty id",
			dialogues: []*Dialogue{linear("", "x")},
			want:      ErrEmptyID,
		},
		{
			name:      "duplicate",
			dialogues: []*Dialogue{linear("a", "x"), linear("a", "y")},
			want:      ErrDuplicateID,
		},
		{
			name:      "no parts",
			dialogues: []*Dialogue{{ID: "a"}},
			want:      ErrNoParts,
		},
		{
			name: "unknown goto",
			dialogues: []*Dialogue{{
				ID:    "a",
				Parts: map[PartName][]Line{StartPart: {{Text: "x", Goto: "nowhere"}}},
			}},
			want: ErrUnknownPart,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMapping(tc.dialogues)
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNilMapping(t *testing.T) {
	var m *Mapping
	if _, ok := m.Get("a"); ok {
		t.Error("nil mapping should not find anything")
	}
	if m.Len() != 0 || m.IDs() != nil {
		t.Error("nil mapping should be empty")
	}
}

func TestGeneratorLinear(t *testing.T) {
	g := NewGenerator(linear("d", "one", "two", ""))

	for _, want := range []string{"one", "two", "", ""} {
		if got := g.NextLine().Text; got != want {
			t.Fatalf("Expected %q, got %q", want, got)
		}
	}
}

func TestGeneratorEndsWhenPartExhausted(t *testing.T) {
	// No explicit empty terminal line.
	g := NewGenerator(linear("d", "only"))
	if got := g.NextLine().Text; got != "only" {
		t.Fatalf("Expected only, got %q", got)
	}
	if line := g.NextLine(); !line.IsEnd() {
		t.Fatalf("Expected end, got %+v", line)
	}
}

func TestGeneratorFollowsGoto(t *testing.T) {
	d := &Dialogue{
		ID: "branch",
		Parts: map[PartName][]Line{
			StartPart: {
				{Text: "start"},
				{Text: "jump", Goto: "side"},
				{Text: "skipped"},
			},
			"side": {
				{Text: "side one"},
				{Text: ""},
			},
		},
		Order: []PartName{StartPart, "side"},
	}
	g := NewGenerator(d)

	var got []string
	for i := 0; i < 6; i++ {
		line := g.NextLine()
		if line.IsEnd() {
			break
		}
		got = append(got, line.Text)
	}
	want := []string{"start", "jump", "side one"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestGeneratorStartsAtFirstAuthoredPart(t *testing.T) {
	d := &Dialogue{
		ID:    "named",
		Parts: map[PartName][]Line{"intro": {{Text: "hi"}}},
		Order: []PartName{"intro"},
	}
	g := NewGenerator(d)
	if got := g.NextLine().Text; got != "hi" {
		t.Fatalf("Expected hi, got %q", got)
	}
	part, idx := g.Position()
	if part != "intro" || idx != 1 {
		t.Errorf("Expected position intro/1, got %s/%d", part, idx)
	}
}

func TestSubstituteName(t *testing.T) {
	cases := map[string]string{
		"Hello {name}":        "Hello Avery",
		"{name}, {name}!":     "Avery, Avery!",
		"no placeholder here": "no placeholder here",
		"":                    "",
	}
	for input, expected := range cases {
		if got := SubstituteName(input, "Avery"); got != expected {
			t.Errorf("SubstituteName(%q) = %q, expected %q", input, got, expected)
		}
	}
}
