/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tiketi/apiserver/config"
	"github.com/tiketi/apiserver/internal/db"
	"github.com/tiketi/apiserver/internal/services"
	"github.com/tiketi/apiserver/internal/store"
)

// userCmd groups account administration commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var promoteEmail string

var userPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Grant the admin role to a user",
	Long: `Grant the admin role to an existing user. Usage:

	tiketi user promote --email admin@example.com
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		setupLogger(cfg.LogLevel)

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		users := services.NewUserService(store.NewUserRepository(dbConn), nil, nil, nil)
		user, err := users.Promote(cmd.Context(), promoteEmail)
		if err != nil {
			return fmt.Errorf("promote %s: %w", promoteEmail, err)
		}

		slog.Info("user promoted", "user_id", user.ID, "role", user.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userPromoteCmd)

	userPromoteCmd.Flags().StringVar(&promoteEmail, "email", "", "email of the user to promote")
	_ = userPromoteCmd.MarkFlagRequired("email")
}
