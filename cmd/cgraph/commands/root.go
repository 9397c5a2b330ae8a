package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cgraph/internal/app"
)

var (
	home         string
	passphrase   string
	directoryURL string
	userID       string

	application *app.App
)

// Execute builds the command tree and runs it.
func Execute() error {
	root := &cobra.Command{
		Use:   "cgraph",
		Short: "End-to-end encrypted direct messaging CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".cgraph")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}
			if userID == "" {
				return fmt.Errorf("user id required (--user)")
			}

			cfg, err := app.LoadConfig(filepath.Join(home, "config.yaml"))
			if err != nil {
				return err
			}
			cfg.Home = home
			cfg.UserID = userID
			if directoryURL != "" {
				cfg.DirectoryURL = directoryURL
			}

			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				With().Timestamp().Logger()
			application = app.New(cfg, passphrase, log)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.cgraph)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting local keys")
	root.PersistentFlags().StringVar(&directoryURL, "directory", "", "key directory base URL")
	root.PersistentFlags().StringVarP(&userID, "user", "u", "", "your user id")

	root.AddCommand(
		setupCmd(),
		registerCmd(),
		sendCmd(),
		recvCmd(),
		safetyCmd(),
		devicesCmd(),
		revokeCmd(),
		replenishCmd(),
		statusCmd(),
	)
	return root.Execute()
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}
