package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tripreport/internal/core"
	"tripreport/internal/render"
	"tripreport/internal/session"
	"tripreport/internal/store"
)

// NewReportsCmd creates the reports command group
func NewReportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage published reports",
	}

	cmd.AddCommand(newReportsListCmd())
	cmd.AddCommand(newReportsShowCmd())
	cmd.AddCommand(newReportsDeleteCmd())
	cmd.AddCommand(newReportsLoadCmd())
	return cmd
}

func newReportsListCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published reports, newest first",
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

			reports, err := st.LoadAll(ctx)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No published reports yet")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d published reports", len(reports))))
			for _, p := range reports {
				title := p.Title.Get(language)
				if title == "" {
					title = p.Title.Either()
				}
				fmt.Fprintf(out, "%s  %s  %s\n", p.ID, subtleStyle.Render(formatDate(p.PublishDate)), title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "zh", "title language: en or zh")
	return cmd
}

func newReportsShowCmd() *cobra.Command {
	var (
		lang   string
		format string
		images bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a published report as markdown or JSON",
		Args:  cobra.ExactArgs(1),
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

			p, err := st.Get(ctx, args[0])
			if err != nil {
				return reportError(args[0], err)
			}

			if format == "json" {
				b, err := json.MarshalIndent(p, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), render.Published(*p, render.Options{Language: language, Images: images}))
			return err
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "both", "language: en, zh or both")
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: markdown or json")
	cmd.Flags().BoolVar(&images, "images", false, "embed images as data URLs")
	return cmd
}

func newReportsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a published report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(ctx, args[0]); err != nil {
				return reportError(args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Deleted "+args[0]))
			return nil
		},
	}
}

func newReportsLoadCmd() *cobra.Command {
	var (
		out string
		yes bool
	)

	cmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Rebuild an editable report-data bundle from a published report",
		Long: `Rebuild entries and draft from a published report and write them as a
report-data bundle. Notes and captions are not part of a published report,
so the rebuilt entries only carry titles, copy and images.

The bundle replaces whatever is being edited, so --yes is required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := st.Get(ctx, args[0])
			if err != nil {
				return reportError(args[0], err)
			}

			settings, err := currentSettings(ctx, st)
			if err != nil {
				return err
			}
			sess := session.New(settings)
			if err := sess.LoadPublished(*p, yes); err != nil {
				if errors.Is(err, session.ErrConfirmationRequired) {
					return fmt.Errorf("%w (pass --yes)", err)
				}
				return err
			}

			data, err := sess.ExportReportData()
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, data)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "bundle file to write (default stdout)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm replacing the current bundle")
	return cmd
}

func reportError(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("report %s not found", id)
	}
	return err
}
