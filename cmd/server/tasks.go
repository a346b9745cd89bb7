package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/auth"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Time out stale open commands once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.sweeper.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d command(s) timed out\n", n)
		return nil
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Deliver pending outbox messages once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.pusher.Flush(cmd.Context()) {
			return fmt.Errorf("another flush is in progress")
		}
		return nil
	},
}

var pullOffline bool

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Reconcile measurements from the backend once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if pullOffline {
			a.puller.OfflinePull(cmd.Context())
		} else {
			a.puller.OnlinePull(cmd.Context())
		}
		return nil
	},
}

func init() {
	pullCmd.Flags().BoolVar(&pullOffline, "offline", false, "Reconcile every campaign with the long timeout")
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <name> <secret>",
	Short: "Print an api_tokens entry for a bearer token",
	Long: "Print the name=hash pair to add to api_tokens. Clients then send \"Bearer <name>.<secret>\".\n" +
		"Names prefixed with vehicle: are restricted to that vehicle's endpoints.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashSecret(args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s=%s\n", args[0], hash)
		return nil
	},
}
