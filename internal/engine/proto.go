package engine

// Commit is text the engine has committed to the application.
type Commit struct {
	Text string `json:"text"`
}

// Candidate is one entry on the current menu page.
type Candidate struct {
	Text    string `json:"text"`
	Comment string `json:"comment,omitempty"`
	Label   string `json:"label"`
}

// CandidateItem is a candidate addressed by absolute menu position.
type CandidateItem struct {
	Text    string `json:"text"`
	Comment string `json:"comment,omitempty"`
}

// Composition is the in-progress (preedit) text. Positions are rune offsets
// into Preedit.
type Composition struct {
	Length            int    `json:"length"`
	CursorPos         int    `json:"cursor_pos"`
	SelStart          int    `json:"sel_start"`
	SelEnd            int    `json:"sel_end"`
	Preedit           string `json:"preedit,omitempty"`
	CommitTextPreview string `json:"commit_text_preview,omitempty"`
}

// Menu is the current page of candidates.
type Menu struct {
	PageSize                  int         `json:"page_size"`
	PageNumber                int         `json:"page_number"`
	IsLastPage                bool        `json:"is_last_page"`
	HighlightedCandidateIndex int         `json:"highlighted_candidate_index"`
	Candidates                []Candidate `json:"candidates,omitempty"`
	SelectKeys                string      `json:"select_keys,omitempty"`
	SelectLabels              []string    `json:"select_labels,omitempty"`
}

// Context is the engine's composition and menu state.
type Context struct {
	Composition Composition `json:"composition"`
	Menu        Menu        `json:"menu"`
	Input       string      `json:"input"`
}

// CaretPos is the composition cursor position.
func (c *Context) CaretPos() int {
	return c.Composition.CursorPos
}

// HasMenu reports whether there are candidates to show.
func (c *Context) HasMenu() bool {
	return len(c.Menu.Candidates) > 0
}

// Status is the engine's mode state.
type Status struct {
	SchemaID      string `json:"schema_id"`
	SchemaName    string `json:"schema_name"`
	IsDisabled    bool   `json:"is_disabled"`
	IsComposing   bool   `json:"is_composing"`
	IsASCIIMode   bool   `json:"is_ascii_mode"`
	IsFullShape   bool   `json:"is_full_shape"`
	IsSimplified  bool   `json:"is_simplified"`
	IsTraditional bool   `json:"is_traditional"`
	IsASCIIPunct  bool   `json:"is_ascii_punct"`
}

// SchemaItem identifies an input schema.
type SchemaItem struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
