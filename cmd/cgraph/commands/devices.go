package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cgraph/internal/domain"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List your registered devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := application.Devices.ListDevices(cmd.Context(), domain.UserID(userID))
			if err != nil {
				return err
			}
			for _, d := range devices {
				fmt.Printf("%s  %s\n", d.DeviceID, d.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <device-id>",
		Short: "Revoke a device's published keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := application.Devices.RevokeDevice(cmd.Context(), domain.DeviceID(args[0])); err != nil {
				return err
			}
			fmt.Println("revoked")
			return nil
		},
	}
}

func replenishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replenish",
		Short: "Top up one-time prekeys if below the low-water mark",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			return application.Devices.Replenish(cmd.Context())
		},
	}
}
