package cmd

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/imecore/internal/engine"
	"github.com/Iron-Ham/imecore/internal/event"
)

var runCmd = &cobra.Command{
	Use:   "run <keys>...",
	Short: "Type a key sequence into a fresh engine session",
	Long: `Start an engine session, feed it the given key sequences and print what
was committed along with the final composition.

Plain characters type themselves and {Name} names a key, optionally with
modifiers: "nihao{space}", "{Shift+Return}", "{Control+grave}".

Keys the engine does not consume are passed through to the output the way
an application would receive them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("schema", "s", "", "schema to select before typing")
	runCmd.Flags().Bool("full-check", false, "force a full deploy check on startup")
	_ = viper.BindPFlag("engine.full_check", runCmd.Flags().Lookup("full-check"))
}

func runRun(cmd *cobra.Command, args []string) error {
	var events []engine.KeyEvent
	for _, arg := range args {
		parsed, err := engine.ParseKeySequence(arg)
		if err != nil {
			return err
		}
		events = append(events, parsed...)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(&cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	c := newCore(cfg, logger)

	// Collect state on the worker as each operation completes.
	var (
		mu     sync.Mutex
		output strings.Builder
		last   event.Response
	)
	c.Bus().Responses.AddListener(event.Handler(func(r event.Response) {
		mu.Lock()
		defer mu.Unlock()
		if r.Commit != nil {
			output.WriteString(r.Commit.Text)
		}
		last = r
	}))

	c.Startup(cfg.Engine.FullCheck)
	defer c.Shutdown()

	ctx := cmd.Context()
	if err := c.Lifecycle().AwaitReady(ctx); err != nil {
		return err
	}

	if id, _ := cmd.Flags().GetString("schema"); id != "" {
		ok, err := c.SelectSchema(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown schema %q", id)
		}
	}

	for _, ev := range events {
		consumed, err := c.ProcessKey(ctx, ev.Keycode, ev.Modifiers)
		if err != nil {
			return err
		}
		if consumed || ev.Modifiers != 0 {
			continue
		}
		if r, ok := engine.RuneForKeycode(ev.Keycode); ok {
			mu.Lock()
			output.WriteRune(r)
			mu.Unlock()
		}
	}

	mu.Lock()
	defer mu.Unlock()
	p := newPrinter(cmd.OutOrStdout())
	p.commit(output.String())
	p.context(last.Context)
	status := c.InputStatusCached()
	p.field("schema", strings.TrimSpace(status.SchemaID+" "+status.SchemaName))
	return nil
}
