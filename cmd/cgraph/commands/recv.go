package commands

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"cgraph/internal/domain"
)

// recv: fetch pending envelopes, decrypt what we can, ack what we
// processed. A message that fails to decrypt is reported and skipped;
// it is never retried.
func recvCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt pending messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}

			envs, err := application.Directory.FetchEnvelopes(cmd.Context(), domain.UserID(userID), limit)
			if err != nil {
				return err
			}
			for _, env := range envs {
				senderIK := base64.StdEncoding.EncodeToString(env.SenderIdentityKey)
				plaintext, err := application.Messages.DecryptMessage(cmd.Context(), env.From, senderIK, env.Message)
				if err != nil {
					fmt.Printf("[%s] <undecryptable: %v>\n", env.From, err)
					continue
				}
				fmt.Printf("[%s] %s\n", env.From, plaintext)
			}
			if len(envs) > 0 {
				if err := application.Directory.AckEnvelopes(cmd.Context(), domain.UserID(userID), len(envs)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum messages to fetch (0 = all)")
	return cmd
}
