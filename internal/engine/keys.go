package engine

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Iron-Ham/imecore/internal/errors"
)

// KeyModifier is a single modifier bit as understood by the engine.
type KeyModifier uint32

const (
	ModShift   KeyModifier = 1 << 0
	ModLock    KeyModifier = 1 << 1 // Caps Lock
	ModControl KeyModifier = 1 << 2
	ModAlt     KeyModifier = 1 << 3 // Mod1
	ModMod2    KeyModifier = 1 << 4 // Num Lock
	ModMod3    KeyModifier = 1 << 5
	ModMod4    KeyModifier = 1 << 6
	ModMod5    KeyModifier = 1 << 7
	ModButton1 KeyModifier = 1 << 8
	ModButton2 KeyModifier = 1 << 9
	ModButton3 KeyModifier = 1 << 10
	ModButton4 KeyModifier = 1 << 11
	ModButton5 KeyModifier = 1 << 12
	ModHandled KeyModifier = 1 << 24
	ModForward KeyModifier = 1 << 25 // also "Ignored"
	ModSuper   KeyModifier = 1 << 26
	ModHyper   KeyModifier = 1 << 27
	ModMeta    KeyModifier = 1 << 28
	ModRelease KeyModifier = 1 << 30

	// ModMask covers every bit that names a real modifier.
	ModMask KeyModifier = 0x5f001fff
)

var modifierNames = map[string]KeyModifier{
	"Shift":   ModShift,
	"Lock":    ModLock,
	"Control": ModControl,
	"Alt":     ModAlt,
	"Mod1":    ModAlt,
	"Mod2":    ModMod2,
	"Mod3":    ModMod3,
	"Mod4":    ModMod4,
	"Mod5":    ModMod5,
	"Button1": ModButton1,
	"Button2": ModButton2,
	"Button3": ModButton3,
	"Button4": ModButton4,
	"Button5": ModButton5,
	"Handled": ModHandled,
	"Forward": ModForward,
	"Ignored": ModForward,
	"Super":   ModSuper,
	"Hyper":   ModHyper,
	"Meta":    ModMeta,
	"Release": ModRelease,
}

// Order used when rendering a modifier set as text.
var modifierOrder = []struct {
	name string
	mod  KeyModifier
}{
	{"Shift", ModShift},
	{"Lock", ModLock},
	{"Control", ModControl},
	{"Alt", ModAlt},
	{"Super", ModSuper},
	{"Hyper", ModHyper},
	{"Meta", ModMeta},
	{"Release", ModRelease},
}

// ModifierByName returns the modifier called name, e.g. "Control". The second
// result is false for unknown names.
func ModifierByName(name string) (KeyModifier, bool) {
	m, ok := modifierNames[name]
	return m, ok
}

// KeyModifiers is a set of KeyModifier bits.
type KeyModifiers uint32

// NewKeyModifiers merges mods into a set.
func NewKeyModifiers(mods ...KeyModifier) KeyModifiers {
	var set KeyModifiers
	for _, m := range mods {
		set |= KeyModifiers(m)
	}
	return set
}

// Has reports whether m is in the set.
func (k KeyModifiers) Has(m KeyModifier) bool { return k&KeyModifiers(m) != 0 }

// With returns the set plus m.
func (k KeyModifiers) With(m KeyModifier) KeyModifiers { return k | KeyModifiers(m) }

// Without returns the set minus m.
func (k KeyModifiers) Without(m KeyModifier) KeyModifiers { return k &^ KeyModifiers(m) }

func (k KeyModifiers) Shift() bool    { return k.Has(ModShift) }
func (k KeyModifiers) Ctrl() bool     { return k.Has(ModControl) }
func (k KeyModifiers) Alt() bool      { return k.Has(ModAlt) }
func (k KeyModifiers) Meta() bool     { return k.Has(ModMeta) }
func (k KeyModifiers) CapsLock() bool { return k.Has(ModLock) }
func (k KeyModifiers) Release() bool  { return k.Has(ModRelease) }

// String renders the set as "Shift+Control", or "" when empty.
func (k KeyModifiers) String() string {
	var parts []string
	for _, m := range modifierOrder {
		if k.Has(m.mod) {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(parts, "+")
}

// Keysyms for non-printing keys. Printable ASCII keys use their code point.
const (
	KeyBackSpace   = 0xff08
	KeyTab         = 0xff09
	KeyReturn      = 0xff0d
	KeyEscape      = 0xff1b
	KeyHome        = 0xff50
	KeyLeft        = 0xff51
	KeyUp          = 0xff52
	KeyRight       = 0xff53
	KeyDown        = 0xff54
	KeyPageUp      = 0xff55
	KeyPageDown    = 0xff56
	KeyEnd         = 0xff57
	KeyShiftL      = 0xffe1
	KeyShiftR      = 0xffe2
	KeyControlL    = 0xffe3
	KeyControlR    = 0xffe4
	KeyCapsLock    = 0xffe5
	KeyAltL        = 0xffe9
	KeyAltR        = 0xffea
	KeyDelete      = 0xffff
	KeyVoidSymbol  = 0xffffff
	keyUnicodeBase = 0x01000000
)

var keyNames = map[string]int{
	"BackSpace":    KeyBackSpace,
	"Tab":          KeyTab,
	"Return":       KeyReturn,
	"Escape":       KeyEscape,
	"Home":         KeyHome,
	"Left":         KeyLeft,
	"Up":           KeyUp,
	"Right":        KeyRight,
	"Down":         KeyDown,
	"Page_Up":      KeyPageUp,
	"Prior":        KeyPageUp,
	"Page_Down":    KeyPageDown,
	"Next":         KeyPageDown,
	"End":          KeyEnd,
	"Shift_L":      KeyShiftL,
	"Shift_R":      KeyShiftR,
	"Control_L":    KeyControlL,
	"Control_R":    KeyControlR,
	"Caps_Lock":    KeyCapsLock,
	"Alt_L":        KeyAltL,
	"Alt_R":        KeyAltR,
	"Delete":       KeyDelete,
	"VoidSymbol":   KeyVoidSymbol,
	"space":        ' ',
	"exclam":       '!',
	"quotedbl":     '"',
	"numbersign":   '#',
	"dollar":       '$',
	"percent":      '%',
	"ampersand":    '&',
	"apostrophe":   '\'',
	"parenleft":    '(',
	"parenright":   ')',
	"asterisk":     '*',
	"plus":         '+',
	"comma":        ',',
	"minus":        '-',
	"period":       '.',
	"slash":        '/',
	"colon":        ':',
	"semicolon":    ';',
	"less":         '<',
	"equal":        '=',
	"greater":      '>',
	"question":     '?',
	"at":           '@',
	"bracketleft":  '[',
	"backslash":    '\\',
	"bracketright": ']',
	"asciicircum":  '^',
	"underscore":   '_',
	"grave":        '`',
	"braceleft":    '{',
	"bar":          '|',
	"braceright":   '}',
	"asciitilde":   '~',
}

var keyNamesByCode = func() map[int]string {
	m := make(map[int]string, len(keyNames))
	names := make([]string, 0, len(keyNames))
	for name := range keyNames {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		code := keyNames[name]
		if _, dup := m[code]; !dup {
			m[code] = name
		}
	}
	// Prefer the canonical names over their aliases.
	m[KeyPageUp] = "Page_Up"
	m[KeyPageDown] = "Page_Down"
	return m
}()

func init() {
	for i := 1; i <= 12; i++ {
		keyNames[fmt.Sprintf("F%d", i)] = 0xffbd + i
	}
}

// KeycodeByName returns the keysym for name. Single printable characters are
// their own names ("a", "1"). The second result is false for unknown names.
func KeycodeByName(name string) (int, bool) {
	if code, ok := keyNames[name]; ok {
		return code, true
	}
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		return keycodeForRune(r), true
	}
	return 0, false
}

// KeyName returns a printable name for keycode.
func KeyName(keycode int) string {
	if name, ok := keyNamesByCode[keycode]; ok {
		return name
	}
	if keycode >= 0x30 && keycode <= 0x39 || keycode >= 0x41 && keycode <= 0x5a || keycode >= 0x61 && keycode <= 0x7a {
		return string(rune(keycode))
	}
	if keycode > keyUnicodeBase {
		return string(rune(keycode - keyUnicodeBase))
	}
	if keycode >= 0xffbe && keycode <= 0xffc9 {
		return fmt.Sprintf("F%d", keycode-0xffbd)
	}
	return fmt.Sprintf("0x%04x", keycode)
}

// RuneForKeycode returns the character a keycode types, if any.
func RuneForKeycode(keycode int) (rune, bool) {
	switch {
	case keycode >= 0x20 && keycode <= 0x7e:
		return rune(keycode), true
	case keycode > keyUnicodeBase:
		return rune(keycode - keyUnicodeBase), true
	default:
		return 0, false
	}
}

func keycodeForRune(r rune) int {
	if r >= 0x20 && r <= 0x7e {
		return int(r)
	}
	return keyUnicodeBase + int(r)
}

// KeyEvent is one key press (or release) in a sequence.
type KeyEvent struct {
	Keycode   int
	Modifiers KeyModifiers
}

// String renders the event in sequence notation: "a", "{Shift+Return}".
func (e KeyEvent) String() string {
	name := KeyName(e.Keycode)
	if e.Modifiers == 0 && utf8.RuneCountInString(name) == 1 && name != "{" && name != "}" {
		return name
	}
	if mods := e.Modifiers.String(); mods != "" {
		return "{" + mods + "+" + name + "}"
	}
	return "{" + name + "}"
}

// ParseKeySequence parses a key sequence such as "ni{space}{Shift+Return}".
// Plain characters type themselves; "{Name}" names a key, optionally prefixed
// with "+"-joined modifiers. "{}" stands for the two literal braces.
func ParseKeySequence(sequence string) ([]KeyEvent, error) {
	sequence = strings.ReplaceAll(sequence, "{}", "{braceleft}{braceright}")

	var events []KeyEvent
	for i := 0; i < len(sequence); {
		if sequence[i] != '{' {
			r, size := utf8.DecodeRuneInString(sequence[i:])
			if r == utf8.RuneError && size == 1 {
				return nil, errors.Wrapf(errors.ErrInvalidKeySequence, "invalid UTF-8 at offset %d", i)
			}
			if r == '}' {
				return nil, errors.Wrapf(errors.ErrInvalidKeySequence, "unmatched '}' at offset %d", i)
			}
			events = append(events, KeyEvent{Keycode: keycodeForRune(r)})
			i += size
			continue
		}

		end := strings.IndexByte(sequence[i:], '}')
		if end < 0 {
			return nil, errors.Wrapf(errors.ErrInvalidKeySequence, "unterminated '{' at offset %d", i)
		}
		ev, err := parseKeyToken(sequence[i+1 : i+end])
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		i += end + 1
	}
	return events, nil
}

func parseKeyToken(token string) (KeyEvent, error) {
	if token == "" {
		return KeyEvent{}, errors.Wrap(errors.ErrInvalidKeySequence, "empty key name")
	}

	var ev KeyEvent
	parts := strings.Split(token, "+")
	// "{+}" and "{Control++}" name the plus key.
	if token == "+" || strings.HasSuffix(token, "++") {
		parts = append(parts[:len(parts)-2], "+")
	}
	for _, mod := range parts[:len(parts)-1] {
		m, ok := ModifierByName(mod)
		if !ok {
			return KeyEvent{}, errors.Wrapf(errors.ErrInvalidKeySequence, "unknown modifier %q", mod)
		}
		ev.Modifiers = ev.Modifiers.With(m)
	}

	name := parts[len(parts)-1]
	code, ok := KeycodeByName(name)
	if !ok {
		return KeyEvent{}, errors.Wrapf(errors.ErrInvalidKeySequence, "unknown key %q", name)
	}
	ev.Keycode = code
	return ev, nil
}
