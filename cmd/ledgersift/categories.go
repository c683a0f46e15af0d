package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/taxonomy"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the classification taxonomy",
	}

	cmd.PersistentFlags().String("server", "http://localhost:8000", "ledgersift server URL")

	cmd.AddCommand(categoriesListCmd())
	cmd.AddCommand(categoriesAddCmd())

	return cmd
}

func categoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories and their examples",
		RunE: func(cmd *cobra.Command, _ []string) error {
			serverURL, _ := cmd.Flags().GetString("server")
			client := newAPIClient(serverURL)

			categories, err := client.getTaxonomy(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load taxonomy: %w", err)
			}

			if len(categories) == 0 {
				fmt.Fprintln(os.Stdout, "No categories defined.")
				return nil
			}

			for _, cat := range categories {
				fmt.Fprintf(os.Stdout, "%s (%d examples)\n", cat.Name, len(cat.Examples))
				if len(cat.Examples) > 0 {
					fmt.Fprintf(os.Stdout, "    %s\n", strings.Join(cat.Examples, ", "))
				}
			}
			return nil
		},
	}
}

func categoriesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <category> <example>",
		Short: "Add an example to a category, creating it if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, _ := cmd.Flags().GetString("server")
			client := taxonomy.NewClient(serverURL, 60*time.Second)

			count, err := client.Update(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to update taxonomy: %w", err)
			}

			fmt.Fprintf(os.Stdout, "Updated %q; taxonomy now has %d categories.\n", args[0], count)
			return nil
		},
	}
}
