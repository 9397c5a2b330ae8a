package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cgraph/internal/domain"
	"cgraph/internal/services/bundle"
)

// register: publish the public half of the local bundle to the directory.
func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your public key bundle to the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}

			local, ok, err := application.Keys.Load()
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrNotInitialized
			}
			opks, err := application.Keys.ListOneTimePreKeyPublics()
			if err != nil {
				return err
			}

			reg := bundle.FormatForRegistration(domain.UserID(userID), local)
			reg.OneTimePreKeys = opks
			if err := application.Directory.RegisterBundle(cmd.Context(), reg); err != nil {
				return err
			}
			fmt.Printf("Registered bundle for %s (%d one-time prekeys).\n", userID, len(opks))
			return nil
		},
	}
}
