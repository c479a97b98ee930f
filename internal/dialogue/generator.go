package dialogue

// LineSource produces one line per call. It is stateful and belongs to a
// single playback session. An empty line signals exhaustion.
type LineSource interface {
	NextLine() Line
}

// GeneratorFactory builds a fresh LineSource for a dialogue.
type GeneratorFactory func(d *Dialogue) LineSource

// Generator walks a dialogue's parts, following Goto jumps.
type Generator struct {
	dialogue *Dialogue
	part     PartName
	index    int
	done     bool
}

// NewGenerator creates a generator positioned at the dialogue's first line.
func NewGenerator(d *Dialogue) *Generator {
	return &Generator{
		dialogue: d,
		part:     d.FirstPart(),
	}
}

// NewLineSource adapts NewGenerator to GeneratorFactory.
func NewLineSource(d *Dialogue) LineSource {
	return NewGenerator(d)
}

// NextLine returns the current line and advances. Once the end is reached
// every further call returns the empty line.
func (g *Generator) NextLine() Line {
	if g.done {
		return Line{}
	}

	lines := g.dialogue.Parts[g.part]
	if g.index >= len(lines) {
		g.done = true
		return Line{}
	}

	line := lines[g.index]
	if line.IsEnd() {
		g.done = true
		return line
	}

	if line.Goto != "" {
		g.part = line.Goto
		g.index = 0
	} else {
		g.index++
	}
	return line
}

// Position returns the part and index of the next line to be produced.
func (g *Generator) Position() (PartName, int) {
	return g.part, g.index
}
