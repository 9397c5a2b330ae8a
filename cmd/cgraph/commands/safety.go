package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cgraph/internal/domain"
)

// safety <peer>: print the 60-digit code both parties compare out of
// band.
func safetyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "safety <peer>",
		Short: "Print the safety number shared with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			code, err := application.Messages.SafetyNumber(cmd.Context(), domain.UserID(args[0]))
			if err != nil {
				return err
			}
			fmt.Println(code)
			return nil
		},
	}
}
