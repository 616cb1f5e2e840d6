// Package table implements a small table-driven input engine.
//
// Schemas are YAML files named <id>.schema.yaml in the shared data directory.
// Each maps input codes to candidate words:
//
//	schema:
//	  schema_id: demo
//	  name: Demo
//	switches:
//	  - name: ascii_mode
//	    reset: 0
//	menu:
//	  page_size: 5
//	table:
//	  ni: [你, 泥]
//	  hao: [好, 号]
//
// The selected schema list lives in default.custom.yaml in the user data
// directory under patch.schema_list.
//
// Like any engine.Engine, an Engine must not be used concurrently or
// re-entered; overlapping calls panic.
package table

import (
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/Iron-Ham/imecore/internal/engine"
	"github.com/Iron-Ham/imecore/internal/logging"
)

// Options the engine reports in Status.
const (
	OptionASCIIMode      = "ascii_mode"
	OptionFullShape      = "full_shape"
	OptionSimplification = "simplification"
	OptionTraditional    = "traditional"
	OptionASCIIPunct     = "ascii_punct"
)

type candidate struct {
	code string
	text string
}

// Engine is a table-driven engine.Engine.
type Engine struct {
	logger *logging.Logger
	busy   atomic.Bool

	opts     engine.StartupOptions
	handler  engine.NotificationHandler
	schemas  map[string]*schema
	selected []string
	current  *schema
	options  map[string]bool
	// forgotten holds code+"\x00"+text keys per schema id.
	forgotten map[string]map[string]struct{}

	input      string
	candidates []candidate
	page       int
	highlight  int
	commit     strings.Builder
	hasCommit  bool
}

var _ engine.Engine = (*Engine)(nil)

// New returns a stopped Engine.
func New(logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		logger:    logger.WithComponent("table"),
		schemas:   make(map[string]*schema),
		options:   make(map[string]bool),
		forgotten: make(map[string]map[string]struct{}),
	}
}

func (e *Engine) enter() {
	if !e.busy.CompareAndSwap(false, true) {
		panic("table: engine re-entered")
	}
}

func (e *Engine) exit() { e.busy.Store(false) }

func (e *Engine) notify(messageType, messageValue string) {
	if e.handler != nil {
		e.handler(messageType, messageValue)
	}
}

// Startup loads schemas and the selected schema list. With FullCheck set,
// deploy progress is reported as "deploy" notifications.
func (e *Engine) Startup(opts engine.StartupOptions) {
	e.enter()
	defer e.exit()

	e.opts = opts
	if opts.FullCheck {
		e.notify("deploy", "start")
	}

	schemas, loadErr := loadSchemas(opts.SharedDataDir)
	selected, listErr := loadSchemaList(opts.UserDataDir)
	if loadErr != nil {
		e.logger.Warn("schema load failed", "dir", opts.SharedDataDir, "error", loadErr)
	}
	if listErr != nil {
		e.logger.Warn("schema list load failed", "dir", opts.UserDataDir, "error", listErr)
	}

	e.schemas = schemas
	e.selected = e.knownIDs(selected)
	if len(e.selected) == 0 {
		e.selected = e.availableIDs()
	}
	e.forgotten = make(map[string]map[string]struct{})

	e.logger.Info("engine started",
		"schemas", len(e.schemas),
		"selected", len(e.selected),
		"full_check", opts.FullCheck,
	)

	if opts.FullCheck {
		if loadErr != nil || listErr != nil {
			e.notify("deploy", "failure")
		} else {
			e.notify("deploy", "success")
		}
	}

	if len(e.selected) > 0 {
		e.selectSchema(e.schemas[e.selected[0]])
	}
}

// Shutdown drops all loaded state. The notification handler is kept.
func (e *Engine) Shutdown() {
	e.enter()
	defer e.exit()

	e.clear()
	e.current = nil
	e.schemas = make(map[string]*schema)
	e.selected = nil
	e.options = make(map[string]bool)
	e.commit.Reset()
	e.hasCommit = false
	e.logger.Info("engine shut down")
}

// SetNotificationHandler replaces the notification handler. A nil handler
// silences notifications.
func (e *Engine) SetNotificationHandler(h engine.NotificationHandler) {
	e.handler = h
}

// ProcessKey handles one key event and reports whether it was consumed.
func (e *Engine) ProcessKey(keycode int, mask engine.KeyModifiers) bool {
	e.enter()
	defer e.exit()
	return e.processKey(keycode, mask)
}

// SimulateKeySequence parses sequence and feeds every key. It returns false
// when the sequence does not parse.
func (e *Engine) SimulateKeySequence(sequence string) bool {
	e.enter()
	defer e.exit()

	events, err := engine.ParseKeySequence(sequence)
	if err != nil {
		e.logger.Debug("invalid key sequence", "sequence", sequence, "error", err)
		return false
	}
	for _, ev := range events {
		e.processKey(ev.Keycode, ev.Modifiers)
	}
	return true
}

func (e *Engine) processKey(keycode int, mask engine.KeyModifiers) bool {
	if e.current == nil || engine.IsVoidKeycode(keycode) {
		return false
	}
	if mask.Release() || mask.Ctrl() || mask.Alt() || mask.Meta() {
		return false
	}
	if e.options[OptionASCIIMode] {
		return false
	}

	r, printable := engine.RuneForKeycode(keycode)
	if printable && strings.ContainsRune(e.current.alphabet, r) {
		e.input += string(r)
		e.refresh()
		return true
	}
	if e.input == "" {
		return false
	}

	switch keycode {
	case engine.KeyBackSpace:
		_, size := utf8.DecodeLastRuneInString(e.input)
		e.input = e.input[:len(e.input)-size]
		if e.input == "" {
			e.clear()
		} else {
			e.refresh()
		}
	case engine.KeyEscape:
		e.clear()
	case ' ':
		if !e.selectAbsolute(e.page*e.current.pageSize + e.highlight) {
			e.commitText(e.input)
		}
	case engine.KeyReturn:
		e.commitText(e.input)
	case engine.KeyPageDown, '=', '.':
		e.turnPage(1)
	case engine.KeyPageUp, '-', ',':
		e.turnPage(-1)
	case engine.KeyDown:
		e.moveHighlight(1)
	case engine.KeyUp:
		e.moveHighlight(-1)
	default:
		if i := strings.IndexRune(e.current.selectKeys, r); printable && i >= 0 && i < e.current.pageSize {
			e.selectAbsolute(e.page*e.current.pageSize + i)
		}
	}
	return true
}

// SelectCandidate commits candidate index of the current page.
func (e *Engine) SelectCandidate(index int) bool {
	e.enter()
	defer e.exit()
	if e.current == nil || index < 0 || index >= e.current.pageSize {
		return false
	}
	return e.selectAbsolute(e.page*e.current.pageSize + index)
}

// ForgetCandidate hides candidate index of the current page until the next
// Startup.
func (e *Engine) ForgetCandidate(index int) bool {
	e.enter()
	defer e.exit()
	if e.current == nil || index < 0 || index >= e.current.pageSize {
		return false
	}
	abs := e.page*e.current.pageSize + index
	if abs >= len(e.candidates) {
		return false
	}

	c := e.candidates[abs]
	set := e.forgotten[e.current.id]
	if set == nil {
		set = make(map[string]struct{})
		e.forgotten[e.current.id] = set
	}
	set[c.code+"\x00"+c.text] = struct{}{}
	e.refresh()
	return true
}

// CommitComposition commits the highlighted candidate, or the raw input when
// there is none.
func (e *Engine) CommitComposition() bool {
	e.enter()
	defer e.exit()
	if e.input == "" {
		return false
	}
	if !e.selectAbsolute(e.page*e.current.pageSize + e.highlight) {
		e.commitText(e.input)
	}
	return true
}

// ClearComposition discards the input.
func (e *Engine) ClearComposition() {
	e.enter()
	defer e.exit()
	e.clear()
}

// SetOption switches an option and notifies when its value changed.
func (e *Engine) SetOption(name string, value bool) {
	e.enter()
	defer e.exit()
	e.setOption(name, value)
}

func (e *Engine) setOption(name string, value bool) {
	if e.options[name] == value {
		return
	}
	e.options[name] = value
	if name == OptionASCIIMode && value && e.input != "" {
		e.commitText(e.input)
	}
	if value {
		e.notify("option", name)
	} else {
		e.notify("option", "!"+name)
	}
}

// GetOption returns the value of an option; unknown options are false.
func (e *Engine) GetOption(name string) bool {
	e.enter()
	defer e.exit()
	return e.options[name]
}

// AvailableSchemata returns every loaded schema ordered by id.
func (e *Engine) AvailableSchemata() []engine.SchemaItem {
	e.enter()
	defer e.exit()
	ids := e.availableIDs()
	return e.items(ids)
}

// SelectedSchemata returns the selected schemata in list order.
func (e *Engine) SelectedSchemata() []engine.SchemaItem {
	e.enter()
	defer e.exit()
	return e.items(e.selected)
}

// SetSelectedSchemata replaces the selected list and writes it to the user
// data directory. It fails when any id is unknown or the file cannot be
// written.
func (e *Engine) SetSelectedSchemata(ids []string) bool {
	e.enter()
	defer e.exit()

	if len(e.knownIDs(ids)) != len(ids) {
		return false
	}
	if err := saveSchemaList(e.opts.UserDataDir, ids); err != nil {
		e.logger.Warn("failed to save schema list", "error", err)
		return false
	}
	e.selected = append([]string(nil), ids...)
	return true
}

// CurrentSchemaID returns the current schema id, or engine.DefaultSchemaID
// when none is selected.
func (e *Engine) CurrentSchemaID() string {
	e.enter()
	defer e.exit()
	if e.current == nil {
		return engine.DefaultSchemaID
	}
	return e.current.id
}

// SelectSchema switches to schema id.
func (e *Engine) SelectSchema(id string) bool {
	e.enter()
	defer e.exit()
	s, ok := e.schemas[id]
	if !ok {
		return false
	}
	e.selectSchema(s)
	return true
}

func (e *Engine) selectSchema(s *schema) {
	e.clear()
	e.current = s
	e.options = make(map[string]bool, len(s.resets))
	for name, v := range s.resets {
		e.options[name] = v
	}
	e.notify("schema", s.id+"/"+s.name)
}

// Commit returns and consumes the text committed since the last call.
func (e *Engine) Commit() *engine.Commit {
	e.enter()
	defer e.exit()
	if !e.hasCommit {
		return nil
	}
	c := &engine.Commit{Text: e.commit.String()}
	e.commit.Reset()
	e.hasCommit = false
	return c
}

// Context returns the composition and current menu page.
func (e *Engine) Context() *engine.Context {
	e.enter()
	defer e.exit()

	ctx := &engine.Context{Input: e.input}
	if e.input == "" || e.current == nil {
		return ctx
	}

	n := utf8.RuneCountInString(e.input)
	ctx.Composition = engine.Composition{
		Length:    n,
		CursorPos: n,
		SelStart:  0,
		SelEnd:    n,
		Preedit:   e.input,
	}

	size := e.current.pageSize
	start := e.page * size
	end := min(start+size, len(e.candidates))
	ctx.Menu = engine.Menu{
		PageSize:                  size,
		PageNumber:                e.page,
		IsLastPage:                end >= len(e.candidates),
		HighlightedCandidateIndex: e.highlight,
		SelectKeys:                e.current.selectKeys,
	}
	for i, c := range e.candidates[start:end] {
		label := string([]rune(e.current.selectKeys)[i%utf8.RuneCountInString(e.current.selectKeys)])
		ctx.Menu.SelectLabels = append(ctx.Menu.SelectLabels, label)
		ctx.Menu.Candidates = append(ctx.Menu.Candidates, engine.Candidate{
			Text:    c.text,
			Comment: e.comment(c),
			Label:   label,
		})
	}
	if start+e.highlight < len(e.candidates) {
		ctx.Composition.CommitTextPreview = e.candidates[start+e.highlight].text
	}
	return ctx
}

// Status returns the mode state.
func (e *Engine) Status() *engine.Status {
	e.enter()
	defer e.exit()

	st := &engine.Status{
		SchemaID:      engine.DefaultSchemaID,
		IsDisabled:    e.current == nil,
		IsComposing:   e.input != "",
		IsASCIIMode:   e.options[OptionASCIIMode],
		IsFullShape:   e.options[OptionFullShape],
		IsSimplified:  e.options[OptionSimplification],
		IsTraditional: e.options[OptionTraditional],
		IsASCIIPunct:  e.options[OptionASCIIPunct],
	}
	if e.current != nil {
		st.SchemaID = e.current.id
		st.SchemaName = e.current.name
	}
	return st
}

// Candidates returns up to limit candidates starting at start, regardless of
// paging.
func (e *Engine) Candidates(start, limit int) []engine.CandidateItem {
	e.enter()
	defer e.exit()
	if start < 0 || limit <= 0 || start >= len(e.candidates) {
		return nil
	}
	end := min(start+limit, len(e.candidates))
	items := make([]engine.CandidateItem, 0, end-start)
	for _, c := range e.candidates[start:end] {
		items = append(items, engine.CandidateItem{Text: c.text, Comment: e.comment(c)})
	}
	return items
}

// refresh recomputes the candidate list for the current input.
func (e *Engine) refresh() {
	e.page, e.highlight = 0, 0
	e.candidates = e.candidates[:0]
	if e.input == "" || e.current == nil {
		return
	}

	forgotten := e.forgotten[e.current.id]
	seen := make(map[string]struct{})
	add := func(code string) {
		for _, text := range e.current.words[code] {
			if _, gone := forgotten[code+"\x00"+text]; gone {
				continue
			}
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			e.candidates = append(e.candidates, candidate{code: code, text: text})
		}
	}

	add(e.input)
	i := sort.SearchStrings(e.current.codes, e.input)
	for ; i < len(e.current.codes) && strings.HasPrefix(e.current.codes[i], e.input); i++ {
		if code := e.current.codes[i]; code != e.input {
			add(code)
		}
	}
}

func (e *Engine) comment(c candidate) string {
	if c.code == e.input {
		return ""
	}
	return "~" + strings.TrimPrefix(c.code, e.input)
}

func (e *Engine) selectAbsolute(abs int) bool {
	if abs < 0 || abs >= len(e.candidates) {
		return false
	}
	e.commitText(e.candidates[abs].text)
	return true
}

func (e *Engine) commitText(text string) {
	e.commit.WriteString(text)
	e.hasCommit = true
	e.clear()
}

func (e *Engine) clear() {
	e.input = ""
	e.candidates = nil
	e.page, e.highlight = 0, 0
}

func (e *Engine) turnPage(delta int) {
	size := e.current.pageSize
	last := max(0, (len(e.candidates)-1)/size)
	page := min(max(e.page+delta, 0), last)
	if page != e.page {
		e.page, e.highlight = page, 0
	}
}

func (e *Engine) moveHighlight(delta int) {
	size := e.current.pageSize
	abs := e.page*size + e.highlight + delta
	if abs < 0 || abs >= len(e.candidates) {
		return
	}
	e.page, e.highlight = abs/size, abs%size
}

func (e *Engine) availableIDs() []string {
	ids := make([]string, 0, len(e.schemas))
	for id := range e.schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) knownIDs(ids []string) []string {
	var known []string
	for _, id := range ids {
		if _, ok := e.schemas[id]; ok {
			known = append(known, id)
		}
	}
	return known
}

func (e *Engine) items(ids []string) []engine.SchemaItem {
	items := make([]engine.SchemaItem, 0, len(ids))
	for _, id := range ids {
		if s, ok := e.schemas[id]; ok {
			items = append(items, engine.SchemaItem{ID: s.id, Name: s.name})
		}
	}
	return items
}
