package main

import (
	"fmt"
	"io"
	"os"

	"linkshare/internal/config"
	"linkshare/internal/security"
	"linkshare/internal/webhook"

	"github.com/spf13/cobra"
)

var genSecretCmd = &cobra.Command{
	Use:   "gen-secret",
	Short: "Print a random webhook secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := security.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	},
}

var signSecret string

var signCmd = &cobra.Command{
	Use:   "sign [file]",
	Short: "Print the " + webhook.SignatureHeader + " value for a payload",
	Long: `Compute the signature header value for a payload read from file, or
from stdin when no file is given. Useful for calling /update_server by hand.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := signSecret
		if !cmd.Flags().Changed("secret") {
			secret = os.Getenv(config.EnvWebhookSecret)
		}
		if secret == "" {
			return fmt.Errorf("no secret: pass --secret or set %s", config.EnvWebhookSecret)
		}

		var body []byte
		var err error
		if len(args) == 1 {
			body, err = os.ReadFile(args[0])
		} else {
			body, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), webhook.Sign(secret, body))
		return nil
	},
}

func init() {
	signCmd.Flags().StringVar(&signSecret, "secret", "", "Shared secret (defaults to $"+config.EnvWebhookSecret+")")
}
