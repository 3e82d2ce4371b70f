package story

// Outline is the structured result of the outline step.
type Outline struct {
	Title   string `json:"title"`
	Logline string `json:"logline,omitempty"`
	Acts    []Act  `json:"acts"`
}

// Act is one act of the outline.
type Act struct {
	Summary string   `json:"summary"`
	Beats   []string `json:"beats,omitempty"`
}

// Cast is the structured result of the cast identification step.
type Cast struct {
	Characters []CastMember `json:"characters"`
}

// CastMember is one character the outline requires.
type CastMember struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	ArcHint string `json:"arc_hint,omitempty"`
}

// Profile is the structured result of one character development step.
type Profile struct {
	Name          string   `json:"name"`
	Voice         string   `json:"voice"`
	Motivation    string   `json:"motivation"`
	Backstory     string   `json:"backstory,omitempty"`
	Relationships []string `json:"relationships,omitempty"`
	Placeholder   bool     `json:"placeholder,omitempty"`
}

// Setting is the structured result of the world-building step.
type Setting struct {
	World       string     `json:"world"`
	Era         string     `json:"era,omitempty"`
	Locations   []Location `json:"locations"`
	Placeholder bool       `json:"placeholder,omitempty"`
}

// Location is one concrete place in the setting.
type Location struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Theme is the structured result of the theme distillation step.
type Theme struct {
	Statement   string   `json:"statement"`
	Motifs      []string `json:"motifs,omitempty"`
	Placeholder bool     `json:"placeholder,omitempty"`
}

// Document is the assembled final story.
type Document struct {
	Title    string    `json:"title"`
	Synopsis string    `json:"synopsis"`
	Chapters []Chapter `json:"chapters"`
}

// Chapter is one chapter of the assembled story.
type Chapter struct {
	Heading string `json:"heading"`
	Prose   string `json:"prose"`
}
