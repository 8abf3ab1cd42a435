package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/solatis/conditions/internal/core/auth"
	"github.com/solatis/conditions/internal/core/config"
	"github.com/spf13/cobra"
)

func newKeysCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys for the gRPC service",
	}

	withKeys := func(cmd *cobra.Command, fn func(*auth.Keys, map[string][]byte) error) error {
		e, err := root.load(cmd)
		if err != nil {
			return err
		}
		secrets, err := config.HMACSecrets()
		if err != nil {
			return fmt.Errorf("failed to load HMAC secrets: %w", err)
		}
		database, queries, err := e.openQueries(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()
		return fn(auth.NewKeys(secrets, queries), secrets)
	}

	var secretID string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Issue a new API key; the key is printed once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeys(cmd, func(keys *auth.Keys, secrets map[string][]byte) error {
				id := secretID
				if id == "" {
					if len(secrets) != 1 {
						return fmt.Errorf("--secret-id required when %d HMAC secrets are configured (set %s_HMAC_SECRET)", len(secrets), config.EnvPrefix)
					}
					for only := range secrets {
						id = only
					}
				}
				apiKey, info, err := keys.Create(cmd.Context(), args[0], id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "created key %s (%s)\n", info.APIKeyID, info.Name)
				fmt.Fprintln(cmd.OutOrStdout(), apiKey)
				return nil
			})
		},
	}
	create.Flags().StringVar(&secretID, "secret-id", "", "HMAC secret to sign the key with (required with multiple secrets)")

	cmd.AddCommand(
		create,
		&cobra.Command{
			Use:   "list",
			Short: "List API keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withKeys(cmd, func(keys *auth.Keys, _ map[string][]byte) error {
					infos, err := keys.List(cmd.Context())
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tCREATED AT\tLAST USED\tSTATUS")
					for _, k := range infos {
						lastUsed, state := "-", "active"
						if k.LastUsedAt.Valid {
							lastUsed = k.LastUsedAt.Time.UTC().Format(time.RFC3339)
						}
						if k.RevokedAt.Valid {
							state = "revoked"
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", k.APIKeyID, k.Name, k.CreatedAt.UTC().Format(time.RFC3339), lastUsed, state)
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "revoke ID",
			Short: "Revoke an API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withKeys(cmd, func(keys *auth.Keys, _ map[string][]byte) error {
					return keys.Revoke(cmd.Context(), args[0])
				})
			},
		},
	)

	return cmd
}
