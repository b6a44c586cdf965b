package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/manager"
	"github.com/spf13/cobra"
)

func (r *runner) collectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the known collections",
		Args:  cobra.NoArgs,
		RunE: r.runE(func(cmd *cobra.Command, args []string) error {
			reg := r.app.Registry()
			for _, s := range reg.All() {
				key := s.ForeignKey
				if key == "" {
					key = "-"
				}
				fmt.Fprintf(out(cmd), "%s\ttable=%s\tid=%s\tkey=%s\n", s.Name, s.Table, s.IDField, key)
			}
			return nil
		}),
	}
}

func (r *runner) listCommand() *cobra.Command {
	var fresh, asJSON bool
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List the records of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: r.runE(func(cmd *cobra.Command, args []string) error {
			m, err := r.manager(args[0])
			if err != nil {
				return err
			}
			opts := manager.Cached
			if fresh {
				opts = manager.Fresh
			}
			recs, err := m.GetAll(cmd.Context(), opts)
			if err != nil && recs == nil {
				return err
			}
			if err != nil {
				r.log.Warn(cmd.Context(), "collection not persisted", "collection", args[0], "err", err)
			}
			if asJSON {
				return writeJSON(out(cmd), recs)
			}
			return writeTable(out(cmd), m.Schema(), recs)
		}),
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "wait for a sync pass")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func (r *runner) getCommand() *cobra.Command {
	var byKey bool
	cmd := &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(2),
		RunE: r.runE(func(cmd *cobra.Command, args []string) error {
			m, err := r.manager(args[0])
			if err != nil {
				return err
			}
			var rec entity.Record
			if byKey {
				rec, err = m.GetByKey(cmd.Context(), args[1])
			} else {
				rec, err = m.Get(cmd.Context(), args[1])
			}
			if err != nil {
				return err
			}
			return writeJSON(out(cmd), rec)
		}),
	}
	cmd.Flags().BoolVar(&byKey, "key", false, "look the record up by its foreign key")
	return cmd
}

func (r *runner) addCommand() *cobra.Command {
	var assets []string
	cmd := &cobra.Command{
		Use:   "add <collection> (<json> | field=value...)",
		Short: "Create a record",
		Args:  cobra.MinimumNArgs(1),
		RunE: r.runE(func(cmd *cobra.Command, args []string) error {
			m, err := r.manager(args[0])
			if err != nil {
				return err
			}
			rec, err := parseRecord(args[1:])
			if err != nil {
				return err
			}
			if err := r.attachAssets(cmd, m, rec, assets); err != nil {
				return err
			}
			created, err := m.Add(cmd.Context(), rec)
			if err != nil {
				return err
			}
			return writeJSON(out(cmd), created)
		}),
	}
	cmd.Flags().StringArrayVar(&assets, "asset", nil, "upload a file and store its path in a field (field=path)")
	return cmd
}

func (r *runner) updateCommand() *cobra.Command {
	var assets []string
	cmd := &cobra.Command{
		Use:   "update <collection> <id> (<json> | field=value...)",
		Short: "Patch a record",
		Args:  cobra.MinimumNArgs(2),
		RunE: r.runE(func(cmd *cobra.Command, args []string) error {
			m, err := r.manager(args[0])
			if err != nil {
				return err
			}
			patch, err := parseRecord(args[2:])
			if err != nil {
				return err
			}
			if err := r.attachAssets(cmd, m, patch, assets); err != nil {
				return err
			}
			if len(patch) == 0 {
				return fmt.Errorf("nothing to update")
			}
			updated, err := m.Update(cmd.Context(), args[1], patch)
			if err != nil {
				return err
			}
			return writeJSON(out(cmd), updated)
		}),
	}
	cmd.Flags().StringArrayVar(&assets, "asset", nil, "upload a file and store its path in a field (field=path)")
	return cmd
}

func (r *runner) attachAssets(cmd *cobra.Command, m *manager.Manager, rec entity.Record, specs []string) error {
	for _, arg := range specs {
		field, path, ok := strings.Cut(arg, "=")
		if !ok || field == "" || path == "" {
			return fmt.Errorf("expected field=path, got %q", arg)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read asset: %w", err)
		}
		a, err := m.UploadAsset(cmd.Context(), data, filepath.Base(path))
		if err != nil {
			return err
		}
		rec[field] = a.Path
	}
	return nil
}

func (r *runner) deleteCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: r.runE(func(cmd *cobra.Command, args []string) error {
			m, err := r.manager(args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := Confirm(reader(cmd), fmt.Sprintf("Delete %s %s?", args[0], args[1]), out(cmd))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out(cmd), "cancelled")
					return nil
				}
			}
			if err := m.Delete(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "deleted %s %s\n", args[0], args[1])
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (r *runner) syncCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync [collection...]",
		Short: "Reconcile collections with the remote",
		RunE: r.runE(func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = r.app.Registry().Names()
			}
			var failed int
			for _, name := range names {
				m, err := r.manager(name)
				if err != nil {
					return err
				}
				res, err := m.Refresh(cmd.Context(), force)
				switch {
				case res.Skipped:
					fmt.Fprintf(out(cmd), "%s: skipped (%s)\n", name, strings.ToLower(res.Reason))
				case res.LocalOnly:
					fmt.Fprintf(out(cmd), "%s: local only (%s)\n", name, strings.ToLower(res.Reason))
				case res.Synced:
					c := res.Counts
					fmt.Fprintf(out(cmd), "%s: synced remote=%d local=%d merged=%d added=%d deleted=%d collapsed=%d\n",
						name, c.Remote, c.Local, c.Merged, c.Added, c.Deleted, c.Collapsed)
				}
				if err != nil {
					failed++
					fmt.Fprintf(out(cmd), "%s: failed: %v\n", name, err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d collections failed to sync", failed, len(names))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore the sync cooldown")
	return cmd
}
