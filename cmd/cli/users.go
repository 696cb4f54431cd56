package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wadjakorntonsri/shortly/pkg/core/services"
)

func useraddCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create a local account",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, log, err := openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			user, err := services.NewUserService(repo, log).Signup(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account name")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
