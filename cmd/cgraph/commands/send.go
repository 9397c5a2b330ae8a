package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cgraph/internal/domain"
)

// send <peer> <message>: encrypt and hand off to the directory mailbox.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			peer := domain.UserID(args[0])

			msg, err := application.Messages.EncryptMessage(cmd.Context(), peer, []byte(args[1]))
			if err != nil {
				return err
			}
			env, err := application.Messages.WrapEnvelope(peer, msg)
			if err != nil {
				return err
			}
			if err := application.Directory.SendEnvelope(cmd.Context(), env); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
}
