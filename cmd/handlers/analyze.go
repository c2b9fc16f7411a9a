package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"tripreport/internal/compose"
	"tripreport/internal/core"
)

// NewAnalyzeURLCmd creates the analyze-url command
func NewAnalyzeURLCmd() *cobra.Command {
	var (
		lang   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "analyze-url <url>",
		Short: "Extract facts, style and event contexts from a reference page",
		Long: `Read a reference page (event site, press release, past article) and merge
what the model extracts into the saved settings: the page content and style
become reference material, and suggested event contexts and themes are added.

Examples:
  tripreport analyze-url https://example.com/event --lang en
  tripreport analyze-url https://example.com/event --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			language, err := core.ParseLanguage(lang)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			composer, err := newComposer(ctx)
			if err != nil {
				return err
			}

			analysis, err := composer.AnalyzeURL(ctx, args[0], language)
			if err != nil {
				return fmt.Errorf("failed to analyze %s: %w", args[0], err)
			}

			b, err := json.MarshalIndent(analysis, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))

			if dryRun {
				return nil
			}
			settings, err := currentSettings(ctx, st)
			if err != nil {
				return err
			}
			merged := compose.MergeURLAnalysis(settings, args[0], analysis)
			if err := st.SaveSettings(ctx, merged); err != nil {
				return fmt.Errorf("failed to save settings: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf("✓ Settings updated (%d event contexts)", len(merged.EventContexts))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "zh", "language of the extracted text: en or zh")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the analysis without saving it")
	return cmd
}
