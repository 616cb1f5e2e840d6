package engine

import (
	"testing"

	"github.com/Iron-Ham/imecore/internal/errors"
)

func TestIsVoidKeycode(t *testing.T) {
	tests := []struct {
		keycode int
		want    bool
	}{
		{-1, true},
		{0, true},
		{KeyVoidSymbol, true},
		{'a', false},
		{KeyReturn, false},
	}
	for _, tt := range tests {
		if got := IsVoidKeycode(tt.keycode); got != tt.want {
			t.Errorf("IsVoidKeycode(%#x) = %v, want %v", tt.keycode, got, tt.want)
		}
	}
}

func TestKeyModifiers(t *testing.T) {
	mods := NewKeyModifiers(ModShift, ModControl)

	if !mods.Shift() || !mods.Ctrl() {
		t.Errorf("%v should have Shift and Control", mods)
	}
	if mods.Alt() || mods.Meta() || mods.Release() || mods.CapsLock() {
		t.Errorf("%v has unexpected modifiers", mods)
	}
	if got := mods.String(); got != "Shift+Control" {
		t.Errorf("String() = %q, want %q", got, "Shift+Control")
	}
	if got := mods.Without(ModShift).With(ModRelease).String(); got != "Control+Release" {
		t.Errorf("String() = %q, want %q", got, "Control+Release")
	}
	if got := KeyModifiers(0).String(); got != "" {
		t.Errorf("empty String() = %q, want empty", got)
	}
}

func TestModifierByName(t *testing.T) {
	tests := []struct {
		name string
		want KeyModifier
		ok   bool
	}{
		{"Shift", ModShift, true},
		{"Alt", ModAlt, true},
		{"Mod1", ModAlt, true},
		{"Ignored", ModForward, true},
		{"Release", ModRelease, true},
		{"shift", 0, false},
	}
	for _, tt := range tests {
		got, ok := ModifierByName(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ModifierByName(%q) = (%v, %v), want (%v, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKeycodeByName(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"Return", KeyReturn, true},
		{"space", ' ', true},
		{"a", 'a', true},
		{"Z", 'Z', true},
		{"F1", 0xffbe, true},
		{"F12", 0xffc9, true},
		{"你", keyUnicodeBase + '你', true},
		{"NoSuchKey", 0, false},
	}
	for _, tt := range tests {
		got, ok := KeycodeByName(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KeycodeByName(%q) = (%#x, %v), want (%#x, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKeyName(t *testing.T) {
	tests := []struct {
		keycode int
		want    string
	}{
		{KeyReturn, "Return"},
		{KeyPageDown, "Page_Down"},
		{'a', "a"},
		{'7', "7"},
		{' ', "space"},
		{'{', "braceleft"},
		{0xffc0, "F3"},
		{keyUnicodeBase + '好', "好"},
		{0x1234, "0x1234"},
	}
	for _, tt := range tests {
		if got := KeyName(tt.keycode); got != tt.want {
			t.Errorf("KeyName(%#x) = %q, want %q", tt.keycode, got, tt.want)
		}
	}
}

func TestParseKeySequence(t *testing.T) {
	tests := []struct {
		name     string
		sequence string
		want     []KeyEvent
	}{
		{
			name:     "plain letters",
			sequence: "ni",
			want:     []KeyEvent{{Keycode: 'n'}, {Keycode: 'i'}},
		},
		{
			name:     "named key",
			sequence: "a{space}",
			want:     []KeyEvent{{Keycode: 'a'}, {Keycode: ' '}},
		},
		{
			name:     "modifiers",
			sequence: "{Shift+Control+Return}",
			want:     []KeyEvent{{Keycode: KeyReturn, Modifiers: NewKeyModifiers(ModShift, ModControl)}},
		},
		{
			name:     "empty braces are literal braces",
			sequence: "{}",
			want:     []KeyEvent{{Keycode: '{'}, {Keycode: '}'}},
		},
		{
			name:     "plus key",
			sequence: "{Control++}{+}",
			want:     []KeyEvent{{Keycode: '+', Modifiers: NewKeyModifiers(ModControl)}, {Keycode: '+'}},
		},
		{
			name:     "release",
			sequence: "{Release+Shift_L}",
			want:     []KeyEvent{{Keycode: KeyShiftL, Modifiers: NewKeyModifiers(ModRelease)}},
		},
		{
			name:     "non-ascii",
			sequence: "好",
			want:     []KeyEvent{{Keycode: keyUnicodeBase + '好'}},
		},
		{
			name:     "empty",
			sequence: "",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeySequence(tt.sequence)
			if err != nil {
				t.Fatalf("ParseKeySequence(%q) error: %v", tt.sequence, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseKeySequence(%q) = %v, want %v", tt.sequence, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseKeySequence_Errors(t *testing.T) {
	for _, sequence := range []string{
		"{Return",
		"a}",
		"{NoSuchKey}",
		"{Hyperspace+a}",
		"{Shift+}",
		"\xff",
	} {
		_, err := ParseKeySequence(sequence)
		if !errors.Is(err, errors.ErrInvalidKeySequence) {
			t.Errorf("ParseKeySequence(%q) error = %v, want ErrInvalidKeySequence", sequence, err)
		}
	}
}

func TestKeyEvent_String(t *testing.T) {
	tests := []struct {
		event KeyEvent
		want  string
	}{
		{KeyEvent{Keycode: 'a'}, "a"},
		{KeyEvent{Keycode: ' '}, "{space}"},
		{KeyEvent{Keycode: KeyReturn, Modifiers: NewKeyModifiers(ModShift)}, "{Shift+Return}"},
		{KeyEvent{Keycode: '{'}, "{braceleft}"},
	}
	for _, tt := range tests {
		if got := tt.event.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := &Context{
		Composition: Composition{Preedit: "ni", Length: 2, CursorPos: 2},
		Menu:        Menu{Candidates: []Candidate{{Text: "你", Label: "1"}}},
	}
	if ctx.CaretPos() != 2 {
		t.Errorf("CaretPos() = %d, want 2", ctx.CaretPos())
	}
	if !ctx.HasMenu() {
		t.Error("HasMenu() = false, want true")
	}
	if (&Context{}).HasMenu() {
		t.Error("empty context HasMenu() = true")
	}
}
