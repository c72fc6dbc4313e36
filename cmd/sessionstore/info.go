package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/sessionstore/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the selected backend and check that it is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		defer cancel()

		pingErr := a.store.Ping(ctx)
		tui.PrintBanner(cmd.OutOrStdout(), tui.Status{
			Backend:    string(a.store.Backend()),
			DefaultTTL: a.cfg.DefaultTTL.String(),
			Err:        pingErr,
		})
		if pingErr != nil {
			return fmt.Errorf("backend %s is unreachable: %w", a.store.Backend(), pingErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
