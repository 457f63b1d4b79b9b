package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gaiakodi/gaiasource/internal/render"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the registered providers and whether they are enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		rows := make([]render.Provider, 0, len(a.registry.List()))
		for _, name := range a.registry.List() {
			c, _ := a.registry.Get(name)
			row := render.Provider{
				Name:     name,
				Enabled:  a.registry.IsEnabled(name),
				Priority: a.registry.Priority(name),
				Usage:    a.governor.Usage(name, false),
			}
			for _, op := range c.Capabilities().Operations {
				row.Operations = append(row.Operations, string(op))
			}
			rows = append(rows, row)
		}
		return render.New(os.Stdout, outputFormat(), globalFlags.Plain).Providers(rows)
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
