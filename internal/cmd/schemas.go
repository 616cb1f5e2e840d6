package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/imecore/internal/core"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List the available input schemata",
	Long: `List every schema found in the data directories. Selected schemata are
marked with an asterisk and the current one is printed last.`,
	Args: cobra.NoArgs,
	RunE: runSchemasList,
}

var schemasSelectCmd = &cobra.Command{
	Use:   "select <id>...",
	Short: "Choose which schemata are selected",
	Long: `Replace the selected schemata with the given ids, in order. The choice is
saved to the user data directory and the first id becomes current on the next
startup.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSchemasSelect,
}

func init() {
	rootCmd.AddCommand(schemasCmd)
	schemasCmd.AddCommand(schemasSelectCmd)
}

// withCore starts a core from the loaded configuration, waits for it to be
// ready, runs fn and shuts the core down again.
func withCore(cmd *cobra.Command, fn func(ctx context.Context, c *core.Core) error) error {
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
	c.Startup(cfg.Engine.FullCheck)
	defer c.Shutdown()

	ctx := cmd.Context()
	if err := c.Lifecycle().AwaitReady(ctx); err != nil {
		return err
	}
	return fn(ctx, c)
}

func runSchemasList(cmd *cobra.Command, args []string) error {
	return withCore(cmd, func(ctx context.Context, c *core.Core) error {
		available, err := c.AvailableSchemata(ctx)
		if err != nil {
			return err
		}
		selected, err := c.SelectedSchemata(ctx)
		if err != nil {
			return err
		}
		current, err := c.CurrentSchema(ctx)
		if err != nil {
			return err
		}

		p := newPrinter(cmd.OutOrStdout())
		if len(available) == 0 {
			p.line("no schemata found")
			return nil
		}
		chosen := make(map[string]bool, len(selected))
		for _, s := range selected {
			chosen[s.ID] = true
		}
		for _, s := range available {
			p.schema(s, chosen[s.ID])
		}
		p.field("current", current.ID)
		return nil
	})
}

func runSchemasSelect(cmd *cobra.Command, args []string) error {
	return withCore(cmd, func(ctx context.Context, c *core.Core) error {
		ok, err := c.SetSelectedSchemata(ctx, args)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("could not select %v: unknown schema or unwritable user data directory", args)
		}
		p := newPrinter(cmd.OutOrStdout())
		p.line("selected %d schemata", len(args))
		return nil
	})
}
