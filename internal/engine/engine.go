// Package engine defines the contract between imecore and the stateful input
// engine it serializes access to, along with the value types the engine
// produces.
//
// An Engine is not safe for concurrent use and must not be re-entered. imecore
// guarantees both by calling it only from a dispatch worker. Implementations
// may invoke the NotificationHandler synchronously from inside any method.
package engine

// DefaultSchemaID is reported by CurrentSchemaID when no schema is selected.
const DefaultSchemaID = ".default"

// StartupOptions are passed to Engine.Startup.
type StartupOptions struct {
	// SharedDataDir holds read-only schema data.
	SharedDataDir string
	// UserDataDir holds user customizations and engine-written state.
	UserDataDir string
	// FullCheck forces a full redeploy check of both directories.
	FullCheck bool
}

// NotificationHandler receives engine-initiated messages, for example
// ("schema", "luna_pinyin/朙月拼音") or ("option", "!ascii_mode").
type NotificationHandler func(messageType, messageValue string)

// Engine is the input engine contract.
type Engine interface {
	Startup(opts StartupOptions)
	Shutdown()
	SetNotificationHandler(h NotificationHandler)

	// ProcessKey feeds one key event and reports whether the engine consumed it.
	ProcessKey(keycode int, mask KeyModifiers) bool
	// SimulateKeySequence feeds a sequence in "{Shift+Return}" notation.
	SimulateKeySequence(sequence string) bool
	// SelectCandidate commits the candidate at index on the current page.
	SelectCandidate(index int) bool
	// ForgetCandidate removes the candidate at index on the current page from
	// the user's history.
	ForgetCandidate(index int) bool
	CommitComposition() bool
	ClearComposition()

	SetOption(name string, value bool)
	GetOption(name string) bool

	AvailableSchemata() []SchemaItem
	SelectedSchemata() []SchemaItem
	SetSelectedSchemata(ids []string) bool
	CurrentSchemaID() string
	SelectSchema(id string) bool

	// Commit returns and consumes the pending commit, or nil if there is none.
	Commit() *Commit
	Context() *Context
	Status() *Status
	// Candidates returns up to limit candidates of the whole menu, starting at
	// start. It is independent of paging.
	Candidates(start, limit int) []CandidateItem
}

// IsVoidKeycode reports whether keycode carries no key at all. Such codes are
// never sent to the engine.
func IsVoidKeycode(keycode int) bool {
	return keycode <= 0 || keycode == KeyVoidSymbol
}
