/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"time"

	"github.com/rolegate/rolegate/config"
	"github.com/rolegate/rolegate/internal/db"
	"github.com/rolegate/rolegate/internal/events"
	"github.com/rolegate/rolegate/internal/mq"
	"github.com/rolegate/rolegate/internal/services"
	"github.com/rolegate/rolegate/internal/store"
	"github.com/rolegate/rolegate/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// userCmd groups operator-only account management.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user roles",
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Grant the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRole(cmd.Context(), args[0], types.RoleAdmin)
	},
}

var userDemoteCmd = &cobra.Command{
	Use:   "demote <username>",
	Short: "Revoke the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRole(cmd.Context(), args[0], types.RoleUser)
	},
}

func setRole(ctx context.Context, username string, role types.Role) error {
	cfg, log := mustLoad()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	broker, err := openBroker(ctx, cfg, log)
	if err != nil {
		return err
	}
	if broker != nil {
		defer broker.Close()
	}

	publisher := events.NewPublisher(broker, cfg.Events.Channel, log)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = publisher.Close(closeCtx)
	}()

	users := services.NewUserService(store.NewUserRepository(conn), publisher)
	if err := users.SetRole(ctx, username, role); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"username": username, "role": role}).Info("role updated")
	return nil
}

// openBroker connects to the events backend; a broker outage only costs
// the audit event, so it is logged and skipped.
func openBroker(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (mq.Backend, error) {
	broker, err := mq.Open(ctx, cfg.Events)
	if err != nil {
		log.WithError(err).Warn("events backend unavailable, continuing without audit events")
		return nil, nil
	}
	return broker, nil
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userPromoteCmd)
	userCmd.AddCommand(userDemoteCmd)
}
