package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/imecore/internal/engine"
	"github.com/Iron-Ham/imecore/internal/event"
)

var (
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray

	labelStyle     = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	commitStyle    = lipgloss.NewStyle().Bold(true).Foreground(secondaryColor)
	highlightStyle = lipgloss.NewStyle().Reverse(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(warningColor)
	mutedStyle     = lipgloss.NewStyle().Foreground(mutedColor)
)

// printer writes command output, styled only when w is a terminal. It is
// safe for concurrent use; each line is written atomically.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, styled: styled}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) field(label, value string) {
	p.line("%s %s", p.render(labelStyle, label+":"), value)
}

func (p *printer) commit(text string) {
	p.field("commit", p.render(commitStyle, text))
}

// context prints the composition and the current menu page.
func (p *printer) context(ctx *engine.Context) {
	if ctx == nil {
		return
	}
	if ctx.Composition.Preedit != "" {
		preedit := ctx.Composition.Preedit
		if ctx.Composition.CommitTextPreview != "" {
			preedit += " " + p.render(mutedStyle, "→ "+ctx.Composition.CommitTextPreview)
		}
		p.field("preedit", preedit)
	}
	if !ctx.HasMenu() {
		return
	}
	var items []string
	for i, c := range ctx.Menu.Candidates {
		item := c.Label + "." + c.Text
		if c.Comment != "" {
			item += p.render(mutedStyle, c.Comment)
		}
		if i == ctx.Menu.HighlightedCandidateIndex {
			item = p.render(highlightStyle, item)
		}
		items = append(items, item)
	}
	page := fmt.Sprintf("page %d", ctx.Menu.PageNumber+1)
	if ctx.Menu.IsLastPage {
		page += " (last)"
	}
	p.field("menu", strings.Join(items, " ")+" "+p.render(mutedStyle, "["+page+"]"))
}

// response prints everything a Response carries.
func (p *printer) response(r event.Response) {
	if r.Commit != nil {
		p.commit(r.Commit.Text)
	}
	p.context(r.Context)
}

func (p *printer) notification(n event.Notification) {
	p.line("%s", p.render(noticeStyle, n.String()))
}

func (p *printer) schema(item engine.SchemaItem, marked bool) {
	mark := "  "
	if marked {
		mark = p.render(commitStyle, "* ")
	}
	if item.Name == "" {
		p.line("%s%s", mark, item.ID)
		return
	}
	p.line("%s%s %s", mark, item.ID, p.render(mutedStyle, item.Name))
}
