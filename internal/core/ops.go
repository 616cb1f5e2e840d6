package core

import (
	"context"

	"github.com/Iron-Ham/imecore/internal/dispatch"
	"github.com/Iron-Ham/imecore/internal/engine"
)

// ProcessKey feeds one key event. Void keycodes are rejected without
// reaching the worker.
func (c *Core) ProcessKey(ctx context.Context, keycode int, mask engine.KeyModifiers) (bool, error) {
	if engine.IsVoidKeycode(keycode) {
		return false, nil
	}
	return c.mutate(ctx, "process_key", func() bool {
		return c.engine.ProcessKey(keycode, mask)
	})
}

// SimulateKeySequence feeds a whole key sequence in one task. A sequence that
// does not parse is rejected with an error wrapping
// errors.ErrInvalidKeySequence.
func (c *Core) SimulateKeySequence(ctx context.Context, sequence string) (bool, error) {
	if _, err := engine.ParseKeySequence(sequence); err != nil {
		return false, err
	}
	return c.mutate(ctx, "simulate_key_sequence", func() bool {
		return c.engine.SimulateKeySequence(sequence)
	})
}

// SelectCandidate selects the candidate at index on the current menu page.
func (c *Core) SelectCandidate(ctx context.Context, index int) (bool, error) {
	return c.mutate(ctx, "select_candidate", func() bool {
		return c.engine.SelectCandidate(index)
	})
}

// ForgetCandidate asks the engine to forget the candidate at index on the
// current page.
func (c *Core) ForgetCandidate(ctx context.Context, index int) (bool, error) {
	return c.mutate(ctx, "forget_candidate", func() bool {
		return c.engine.ForgetCandidate(index)
	})
}

// CommitComposition commits the composition as it stands.
func (c *Core) CommitComposition(ctx context.Context) (bool, error) {
	return c.mutate(ctx, "commit_composition", c.engine.CommitComposition)
}

// ClearComposition discards the composition without committing it.
func (c *Core) ClearComposition(ctx context.Context) error {
	_, err := c.mutate(ctx, "clear_composition", func() bool {
		c.engine.ClearComposition()
		return true
	})
	return err
}

// SetRuntimeOption switches an engine option. It does nothing while an
// engine notification is being handled, so a listener reacting to an option
// notification cannot feed back into the engine or deadlock the worker.
func (c *Core) SetRuntimeOption(ctx context.Context, name string, value bool) error {
	if c.handling.Load() {
		c.logger.Debug("option change ignored during notification", "option", name, "value", value)
		return nil
	}
	_, err := c.mutate(ctx, "set_option", func() bool {
		c.engine.SetOption(name, value)
		return true
	})
	return err
}

// GetRuntimeOption reports the current value of an engine option.
func (c *Core) GetRuntimeOption(ctx context.Context, name string) (bool, error) {
	return dispatch.Call(ctx, c.dispatcher, "get_option", func() bool {
		return c.engine.GetOption(name)
	})
}

// AvailableSchemata lists every schema found in the data directories.
func (c *Core) AvailableSchemata(ctx context.Context) ([]engine.SchemaItem, error) {
	return dispatch.Call(ctx, c.dispatcher, "available_schemata", c.engine.AvailableSchemata)
}

// SelectedSchemata lists the schemata enabled for switching, in order.
func (c *Core) SelectedSchemata(ctx context.Context) ([]engine.SchemaItem, error) {
	return dispatch.Call(ctx, c.dispatcher, "selected_schemata", c.engine.SelectedSchemata)
}

// SetSelectedSchemata replaces the enabled schemata with ids.
func (c *Core) SetSelectedSchemata(ctx context.Context, ids []string) (bool, error) {
	ids = append([]string(nil), ids...)
	return dispatch.Call(ctx, c.dispatcher, "set_selected_schemata", func() bool {
		return c.engine.SetSelectedSchemata(ids)
	})
}

// SelectedSchemaID returns the id of the current schema.
func (c *Core) SelectedSchemaID(ctx context.Context) (string, error) {
	return dispatch.Call(ctx, c.dispatcher, "current_schema_id", c.engine.CurrentSchemaID)
}

// SelectSchema switches the current session to schema id.
func (c *Core) SelectSchema(ctx context.Context, id string) (bool, error) {
	return c.mutate(ctx, "select_schema", func() bool {
		return c.engine.SelectSchema(id)
	})
}

// CurrentSchema returns the current schema with its display name. When the
// current id is not among the available schemata only the id is set.
func (c *Core) CurrentSchema(ctx context.Context) (engine.SchemaItem, error) {
	return dispatch.Call(ctx, c.dispatcher, "current_schema", func() engine.SchemaItem {
		id := c.engine.CurrentSchemaID()
		for _, s := range c.engine.AvailableSchemata() {
			if s.ID == id {
				return s
			}
		}
		return engine.SchemaItem{ID: id}
	})
}

// IsEmpty reports whether no real schema is active.
func (c *Core) IsEmpty(ctx context.Context) (bool, error) {
	id, err := c.SelectedSchemaID(ctx)
	if err != nil {
		return false, err
	}
	return id == "" || id == engine.DefaultSchemaID, nil
}

// Candidates returns up to limit menu candidates starting at start.
func (c *Core) Candidates(ctx context.Context, start, limit int) ([]engine.CandidateItem, error) {
	return dispatch.Call(ctx, c.dispatcher, "candidates", func() []engine.CandidateItem {
		return c.engine.Candidates(start, limit)
	})
}
