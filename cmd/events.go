/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rolegate/rolegate/internal/events"
	"github.com/rolegate/rolegate/internal/mq"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the audit event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print auth events as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := mustLoad()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.Events)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("EVENTS_BACKEND is none; nothing to tail")
		}
		defer broker.Close()

		log.WithField("channel", cfg.Events.Channel).Info("tailing auth events")
		if err := events.Tail(ctx, broker, cfg.Events.Channel, log); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
