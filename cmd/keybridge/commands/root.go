package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"keybridge/internal/app"
	"keybridge/internal/domain"
	"keybridge/internal/logging"
)

var (
	home     string
	logLevel string
	wire     *app.Wire
)

func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:          "keybridge",
		Short:        "Remote signer (NIP-46) client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".keybridge")
			}
			cfg, err := app.Load(home)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			log := logging.New(logging.Config{
				App:     "keybridge",
				Level:   cfg.Log.Level,
				NoColor: cfg.Log.NoColor,
				Out:     cmd.ErrOrStderr(),
			})

			onAuth := func(url string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "approve this request at: %s\n", url)
			}
			wire, err = app.NewWire(cmd.Context(), cfg, log, onAuth)
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.keybridge)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace|debug|info|warn|error|off)")

	root.AddCommand(
		connectCmd(),
		statusCmd(),
		pubkeyCmd(),
		pingCmd(),
		signCmd(),
		encryptCmd(),
		decryptCmd(),
		disconnectCmd(),
	)
	err := root.ExecuteContext(ctx)
	// Post-run hooks do not fire when RunE fails, so close here.
	if wire != nil {
		err = errors.Join(err, wire.Close())
	}
	return err
}

// activeProvider returns the installed signing provider, which is the bunker
// facade whenever a session is ready.
func activeProvider() (domain.Provider, error) {
	p, err := wire.Registry.Active()
	if err != nil {
		if e := wire.Engine.Err(); e != nil {
			return nil, fmt.Errorf("not paired (%v); run keybridge connect", e)
		}
		return nil, fmt.Errorf("not paired; run keybridge connect")
	}
	return p, nil
}
