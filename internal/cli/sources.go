package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmarchuk/newsloom/internal/sources"
)

var (
	sourcesFile       string
	sourcesCategory   string
	sourcesShowAll    bool
	sourcesCategories bool
)

// sourcesCmd inspects the source registry
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured content sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		file := sourcesFile
		if file == "" {
			file = cfg.Sources.File
		}
		registry, err := sources.Load(file)
		if err != nil {
			return err
		}

		if sourcesCategories {
			for _, category := range registry.Categories() {
				fmt.Println(category)
			}
			return nil
		}

		list := registry.Active()
		if sourcesShowAll {
			list = registry.All()
		}
		if sourcesCategory != "" {
			list = registry.ByCategory(sourcesCategory)
		}

		if len(list) == 0 {
			fmt.Println("No matching sources.")
			return nil
		}

		fmt.Printf("%-20s %-8s %-14s %-7s %s\n", "ID", "TYPE", "CATEGORY", "ACTIVE", "URL")
		for _, src := range list {
			fmt.Printf("%-20s %-8s %-14s %-7v %s\n",
				src.ID, src.Type, src.Category, src.Active, src.URL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)

	sourcesCmd.Flags().StringVar(&sourcesFile, "sources", "", "sources registry file (default from config)")
	sourcesCmd.Flags().StringVar(&sourcesCategory, "category", "", "filter by category")
	sourcesCmd.Flags().BoolVar(&sourcesShowAll, "all", false, "include inactive sources")
	sourcesCmd.Flags().BoolVar(&sourcesCategories, "categories", false, "list distinct categories")
}
