package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eligibility/internal/events"
)

var watchCmd = &cobra.Command{
	Use:     "watch [subject]",
	Short:   "Print eligibility events as they are published",
	Example: "  criteriactl watch\n  criteriactl watch 'eligibility.subpopulation.>'",
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if env.cfg.NATSURL == "" {
			return errors.New("ELIGIBILITY_NATS_URL is not set")
		}
		subject := events.All
		if len(args) == 1 {
			subject = args[0]
		}

		logger := env.logger
		sub, err := events.NewNATSSubscriber(env.cfg.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(subject)
		if err != nil {
			return fmt.Errorf("subscribing to events: %w", err)
		}
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case data, ok := <-ch:
				if !ok {
					return nil
				}
				if jsonOutput {
					fmt.Println(string(data))
					continue
				}
				fmt.Fprintln(os.Stdout, formatEvent(data))
			}
		}
	},
}
