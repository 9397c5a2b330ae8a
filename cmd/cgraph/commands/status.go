package commands

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

// status: show initialization state and the identity fingerprint.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show device state and identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			local, ok, err := application.Keys.Load()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("not initialized")
				return nil
			}
			sum := sha256.Sum256(local.Identity.Pub.Slice())
			fmt.Printf("Device ID:   %s\n", local.DeviceID)
			fmt.Printf("Fingerprint: %s\n", hex.EncodeToString(sum[:10]))
			return nil
		},
	}
}
