package server

type playDTO struct {
	ID string `json:"id"`
}

type textDTO struct {
	Box  string `json:"box"`
	Text string `json:"text"`
}

type boxDTO struct {
	Box string `json:"box"`
}

type speakerDTO struct {
	Box        string `json:"box"`
	Hidden     bool   `json:"hidden,omitempty"`
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Expression string `json:"expression,omitempty"`
	Position   string `json:"position,omitempty"`
}

type errorDTO struct {
	Dialogue string `json:"dialogue,omitempty"`
	Message  string `json:"message"`
}

type welcomeDTO struct {
	Player     string   `json:"player"`
	Name       string   `json:"name"`
	Checkpoint string   `json:"checkpoint"`
	Flags      []string `json:"flags"`
}

type dialogueSummaryDTO struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Lines int    `json:"lines"`
}

type dialogueListDTO struct {
	Checkpoint string               `json:"checkpoint"`
	Version    uint64               `json:"version"`
	Dialogues  []dialogueSummaryDTO `json:"dialogues"`
}

type playbackDTO struct {
	Session    string `json:"session"`
	Dialogue   string `json:"dialogue"`
	Lines      int    `json:"lines"`
	Outcome    string `json:"outcome"`
	FinishedAt int64  `json:"finished_at"`
}

type playerHistoryDTO struct {
	Player   string        `json:"player"`
	Name     string        `json:"name,omitempty"`
	Online   bool          `json:"online"`
	Flags    []string      `json:"flags"`
	Playback []playbackDTO `json:"playback"`
}
