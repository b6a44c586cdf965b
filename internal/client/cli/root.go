package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/clubsync/internal/client/app"
	"github.com/dmitrijs2005/clubsync/internal/client/config"
	"github.com/dmitrijs2005/clubsync/internal/logging"
	"github.com/dmitrijs2005/clubsync/internal/manager"
	"github.com/spf13/cobra"
)

// Opener builds the client application for one command run. The returned
// function releases it.
type Opener func(ctx context.Context, cfg *config.Config, log logging.Logger, passphrase []byte) (*app.App, func() error, error)

func openApp(ctx context.Context, cfg *config.Config, log logging.Logger, passphrase []byte) (*app.App, func() error, error) {
	a, err := app.New(ctx, cfg, log, passphrase)
	if err != nil {
		return nil, nil, err
	}
	return a, a.Close, nil
}

type Option func(*runner)

// WithOpener replaces the default app.New based opener.
func WithOpener(o Opener) Option {
	return func(r *runner) { r.open = o }
}

type runner struct {
	cfg           *config.Config
	open          Opener
	askPassphrase bool

	log     logging.Logger
	app     *app.App
	release func() error
}

// NewRootCommand returns the clubsync command tree bound to cfg. Flags are
// applied on top of cfg when the command is executed.
func NewRootCommand(cfg *config.Config, opts ...Option) *cobra.Command {
	r := &runner{cfg: cfg, open: openApp}
	for _, o := range opts {
		o(r)
	}

	root := &cobra.Command{
		Use:           "clubsync",
		Short:         "Local-first cache for club collections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return r.start(cmd)
		},
	}

	config.BindFlags(root.PersistentFlags(), cfg)
	root.PersistentFlags().BoolVar(&r.askPassphrase, "ask-passphrase", false, "prompt for the cache passphrase")

	root.AddCommand(
		r.collectionsCommand(),
		r.listCommand(),
		r.getCommand(),
		r.addCommand(),
		r.updateCommand(),
		r.deleteCommand(),
		r.syncCommand(),
		r.watchCommand(),
	)
	return root
}

func (r *runner) start(cmd *cobra.Command) error {
	r.log = logging.NewJSON(cmd.ErrOrStderr(), logging.ParseLevel(r.cfg.LogLevel))

	var passphrase []byte
	if r.askPassphrase {
		pw, err := GetPassword(cmd.ErrOrStderr(), "Cache passphrase")
		if err != nil {
			return fmt.Errorf("read passphrase: %w", err)
		}
		passphrase = pw
		defer clear(passphrase)
	}

	a, release, err := r.open(cmd.Context(), r.cfg, r.log, passphrase)
	if err != nil {
		return err
	}
	r.app, r.release = a, release
	return nil
}

func (r *runner) stop() error {
	if r.release == nil {
		return nil
	}
	err := r.release()
	r.app, r.release = nil, nil
	return err
}

// runE wraps a command body so the app is released even when it fails.
func (r *runner) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		return errors.Join(err, r.stop())
	}
}

func (r *runner) manager(name string) (*manager.Manager, error) {
	if r.app == nil {
		return nil, errors.New("client is not initialised")
	}
	return r.app.Manager(name)
}

func reader(cmd *cobra.Command) *bufio.Reader {
	return bufio.NewReader(cmd.InOrStdin())
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
