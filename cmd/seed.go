package cmd

import (
	"context"
	"fmt"

	"github.com/publicis/arena/internal/store"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the schema and insert the default categories and levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			if err := s.Catalog().SeedDefaults(ctx); err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			cats, err := s.Catalog().Categories(ctx)
			if err != nil {
				return err
			}
			levels, err := s.Catalog().Levels(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog ready: %d categories, %d levels\n", len(cats), len(levels))
			return nil
		})
	},
}
