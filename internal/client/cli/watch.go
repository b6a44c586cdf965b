package cli

import (
	"fmt"
	"sync"

	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/manager"
	"github.com/spf13/cobra"
)

func (r *runner) watchCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "watch <collection>",
		Short: "Print the collection whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: r.runE(func(cmd *cobra.Command, args []string) error {
			m, err := r.manager(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var mu sync.Mutex
			show := func(recs []entity.Record) {
				mu.Lock()
				defer mu.Unlock()
				if asJSON {
					_ = writeJSON(out(cmd), recs)
					return
				}
				fmt.Fprintf(out(cmd), "%s: %d records\n", m.Schema().Name, len(recs))
			}

			unsubscribe := m.Subscribe(show)
			defer unsubscribe()

			recs, err := m.GetAll(ctx, manager.Cached)
			if err != nil && recs == nil {
				return err
			}
			show(recs)

			r.log.Info(ctx, "watching", "collection", args[0], "realtime", m.RealtimeState().String())
			<-ctx.Done()
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the whole collection as JSON")
	return cmd
}
