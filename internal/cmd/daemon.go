package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/imecore/internal/core"
	"github.com/Iron-Ham/imecore/internal/daemon"
	"github.com/Iron-Ham/imecore/internal/deploy"
	"github.com/Iron-Ham/imecore/internal/errors"
	"github.com/Iron-Ham/imecore/internal/event"
	"github.com/Iron-Ham/imecore/internal/logging"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Serve an engine session over standard input",
	Long: `Connect a session to a shared engine and read commands from standard
input, one per line. Responses and engine notifications are printed as they
arrive.

A line is either a key sequence such as "nihao{space}" or one of:
  :select N          select candidate N on the current page
  :forget N          forget candidate N on the current page
  :commit            commit the composition
  :clear             clear the composition
  :schema ID         switch to schema ID
  :option NAME on|off
  :status            print the cached input status
  :redeploy          restart the engine with a full check
  :quit              disconnect and exit

With deploy.watch enabled, changes to the data directories trigger a
redeploy automatically.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().String("session", "", "session name (default: random)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(&cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := daemon.New(newCore(cfg, logger), logger)
	p := newPrinter(cmd.OutOrStdout())

	// Subscribe before the first Connect so the startup notifications are seen.
	notifications := d.Core().Bus().Notifications.Subscribe()
	responses := d.Core().Bus().Responses.Subscribe()
	var wg conc.WaitGroup
	wg.Go(func() { pump(notifications, p.notification) })
	wg.Go(func() { pump(responses, p.response) })
	defer func() {
		notifications.Close()
		responses.Close()
		wg.Wait()
	}()

	name, _ := cmd.Flags().GetString("session")
	session := d.Connect(name)
	defer d.Disconnect(session.Name())
	p.field("session", session.Name())

	if cfg.Deploy.Watch {
		w, err := deploy.New(deploy.Config{
			Dirs:     []string{cfg.Engine.ResolveSharedDataDir(), cfg.Engine.ResolveUserDataDir()},
			Patterns: cfg.Deploy.Patterns,
			Debounce: cfg.Deploy.Debounce(),
		}, func(changed []string) {
			logger.Info("data changed, redeploying", "files", len(changed))
			d.Restart(true)
		}, logger)
		if err != nil {
			return err
		}
		w.Start()
		defer w.Stop()
	}

	if err := session.AwaitReady(ctx); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(ctx, d, session, p, strings.TrimSpace(line))
			if err != nil {
				reportError(p, logger, line, err)
			}
			if quit {
				return nil
			}
		}
	}
}

// reportError logs a failed line at the level its severity calls for and
// tells the user what went wrong without exposing internal errors.
func reportError(p *printer, logger *logging.Logger, line string, err error) {
	logger.Log(severityLevel(errors.GetSeverity(err)), "command failed", "line", line, "error", err)
	switch {
	case errors.IsUserFacing(err):
		p.line("error: %v", err)
	case errors.IsIllegalState(err):
		p.line("error: engine is not running, try :redeploy")
	default:
		p.line("error: internal failure, see the log")
	}
}

// pump prints every entry of sub until it is closed and drained.
func pump[T any](sub *event.Subscription[T], emit func(T)) {
	for {
		v, err := sub.Next(context.Background())
		if err != nil {
			return
		}
		emit(v)
	}
}

func handleLine(ctx context.Context, d *daemon.Daemon, s *daemon.Session, p *printer, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, ":") {
		return false, s.Run(func(c *core.Core) error {
			_, err := c.SimulateKeySequence(ctx, line)
			if errors.Is(err, errors.ErrInvalidKeySequence) {
				return errors.NewInputError("cannot type "+strconv.Quote(line), err)
			}
			return err
		})
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return false, errors.NewInputError("empty command", nil)
	}
	switch fields[0] {
	case "quit":
		return true, nil
	case "redeploy":
		d.Restart(true)
		return false, s.AwaitReady(ctx)
	case "status":
		return false, s.Run(func(c *core.Core) error {
			st := c.InputStatusCached()
			p.field("status", fmt.Sprintf("schema=%s disabled=%t composing=%t ascii_mode=%t full_shape=%t",
				st.SchemaID, st.IsDisabled, st.IsComposing, st.IsASCIIMode, st.IsFullShape))
			return nil
		})
	case "commit":
		return false, s.Run(func(c *core.Core) error {
			_, err := c.CommitComposition(ctx)
			return err
		})
	case "clear":
		return false, s.Run(func(c *core.Core) error {
			return c.ClearComposition(ctx)
		})
	case "select", "forget":
		if len(fields) != 2 {
			return false, errors.NewInputError(fmt.Sprintf("usage: :%s N", fields[0]), nil)
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil {
			return false, errors.NewInputError(fmt.Sprintf("invalid candidate index %q", fields[1]), err)
		}
		return false, s.Run(func(c *core.Core) error {
			var ok bool
			var err error
			if fields[0] == "select" {
				ok, err = c.SelectCandidate(ctx, index)
			} else {
				ok, err = c.ForgetCandidate(ctx, index)
			}
			if err == nil && !ok {
				err = errors.NewInputError(fmt.Sprintf("no candidate at index %d", index), nil)
			}
			return err
		})
	case "schema":
		if len(fields) != 2 {
			return false, errors.NewInputError("usage: :schema ID", nil)
		}
		return false, s.Run(func(c *core.Core) error {
			ok, err := c.SelectSchema(ctx, fields[1])
			if err == nil && !ok {
				err = errors.NewInputError(fmt.Sprintf("unknown schema %q", fields[1]), nil)
			}
			return err
		})
	case "option":
		if len(fields) != 3 || (fields[2] != "on" && fields[2] != "off") {
			return false, errors.NewInputError("usage: :option NAME on|off", nil)
		}
		return false, s.Run(func(c *core.Core) error {
			return c.SetRuntimeOption(ctx, fields[1], fields[2] == "on")
		})
	default:
		return false, errors.NewInputError(fmt.Sprintf("unknown command %q", fields[0]), nil)
	}
}
