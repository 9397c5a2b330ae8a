package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cgraph/internal/domain"
	"cgraph/internal/services/bundle"
)

// setup: generate a key bundle and persist it locally. Publishing the
// public half is the register command's job.
func setupCmd() *cobra.Command {
	var prekeyCount int

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Generate device keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}

			deviceID := domain.DeviceID(uuid.NewString())
			kb, err := bundle.GenerateKeyBundle(deviceID, prekeyCount)
			if err != nil {
				return err
			}
			if err := application.Keys.Save(kb); err != nil {
				return err
			}
			fmt.Printf("Device initialized.\nDevice ID: %s\nRun 'cgraph register' to publish your bundle.\n", deviceID)
			return nil
		},
	}
	cmd.Flags().IntVar(&prekeyCount, "prekeys", bundle.DefaultOneTimePreKeyCount, "number of one-time prekeys to generate")
	return cmd
}
