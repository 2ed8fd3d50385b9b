package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atis-project/atis/internal/store"
)

func newWatchlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Show the persisted threat watchlist from the last scoring cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			if dbPath == "" {
				return fmt.Errorf("--db is required: path to the sqlite watchlist")
			}
			wl, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer wl.Close()

			top, _ := cmd.Flags().GetInt("top")
			scores, err := wl.Top(context.Background(), top)
			if err != nil {
				return err
			}

			return printResult(cmd, scores, func() {
				fmt.Printf("%-16s %8s\n", "OBJECT", "THREAT")
				for _, s := range scores {
					fmt.Printf("%-16s %8.4f\n", s.ObjectID, s.Combined)
				}
			})
		},
	}

	cmd.Flags().Int("top", 20, "Number of objects to show")
	cmd.Flags().String("db", "", "Path to the sqlite watchlist")
	return cmd
}
