package handlers

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tripreport/internal/session"
)

// NewSettingsCmd creates the settings command group
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show, import and export the brand and event context",
	}

	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsImportCmd())
	cmd.AddCommand(newSettingsExportCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current context settings as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			settings, err := currentSettings(ctx, st)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(settings, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}

func newSettingsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge an aiContext (or legacy settings) file into the saved settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			settings, err := currentSettings(ctx, st)
			if err != nil {
				return err
			}
			merged, err := session.New(settings).ImportSettings(data)
			if err != nil {
				return err
			}
			if err := st.SaveSettings(ctx, merged); err != nil {
				return fmt.Errorf("failed to save settings: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Settings imported from "+args[0]))
			return nil
		},
	}
}

func newSettingsExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the brand and author settings as an aiContext file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			settings, err := currentSettings(ctx, st)
			if err != nil {
				return err
			}
			data, err := session.New(settings).ExportAIContext()
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, append(data, '\n'))
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "file to write (default stdout)")
	return cmd
}
