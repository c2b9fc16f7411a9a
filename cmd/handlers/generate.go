package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tripreport/internal/core"
	"tripreport/internal/render"
	"tripreport/internal/report"
	"tripreport/internal/session"
)

type generateOptions struct {
	bundle     string
	lang       string
	mode       string
	format     string
	out        string
	saveBundle bool
}

func (o *generateOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.bundle, "bundle", "b", "", "report-data bundle with entries, event settings and draft (required)")
	cmd.Flags().StringVarP(&o.lang, "lang", "l", "zh", "primary language: en, zh or both")
	cmd.Flags().StringVarP(&o.mode, "mode", "m", "creative", "generation mode: creative, zh_to_en or en_to_zh")
	cmd.Flags().StringVarP(&o.format, "format", "f", "markdown", "output format: markdown or json")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&o.saveBundle, "save-bundle", false, "write the generated draft back into the bundle file")
	_ = cmd.MarkFlagRequired("bundle")
}

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a bilingual report from a report-data bundle",
		Long: `Generate a bilingual report from the entries, event settings and draft
in a report-data bundle (the file exported by the web UI or by
'tripreport reports load').

Modes:
  creative   write the report from the entries, primarily in --lang
  zh_to_en   keep the Chinese draft and highlights, translate to English
  en_to_zh   keep the English draft and highlights, translate to Chinese

Examples:
  tripreport generate --bundle report-data.json --lang en
  tripreport generate --bundle report-data.json --mode zh_to_en --format json -o report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, lang, err := runGenerate(ctx, cmd, opts)
			if err != nil {
				return err
			}
			return printReport(cmd, *sess.Report(), lang, opts)
		},
	}

	opts.bind(cmd)
	return cmd
}

// NewPublishCmd creates the publish command
func NewPublishCmd() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Generate a report and publish it to the gallery",
		Long: `Generate a report like 'tripreport generate' and save it to the gallery
database. The published id is printed on success.

Examples:
  tripreport publish --bundle report-data.json --lang zh`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, _, err := runGenerate(ctx, cmd, opts)
			if err != nil {
				return err
			}

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			pub, err := sess.Publish(time.Now())
			if err != nil {
				return err
			}
			if err := st.Create(ctx, *pub); err != nil {
				return fmt.Errorf("failed to save published report: %w", err)
			}

			fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("✓ Published "+pub.ID))
			fmt.Fprintln(cmd.OutOrStdout(), pub.ID)
			return nil
		},
	}

	opts.bind(cmd)
	return cmd
}

func runGenerate(ctx context.Context, cmd *cobra.Command, opts *generateOptions) (*session.Session, core.Language, error) {
	lang, err := core.ParseLanguage(opts.lang)
	if err != nil {
		return nil, "", err
	}
	mode, err := core.ParseGenerationMode(opts.mode)
	if err != nil {
		return nil, "", err
	}
	if opts.format != "markdown" && opts.format != "json" {
		return nil, "", fmt.Errorf("unknown format %q (want markdown or json)", opts.format)
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, "", err
	}
	sess, err := loadSession(ctx, st, opts.bundle)
	st.Close()
	if err != nil {
		return nil, "", err
	}

	synth, err := newSynthesizer(ctx)
	if err != nil {
		return nil, "", err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), subtleStyle.Render(fmt.Sprintf("Generating %s report (%s) from %d entries...", mode, lang, len(sess.Entries()))))
	if _, err := sess.Generate(ctx, synth, lang, mode); err != nil {
		if errors.Is(err, report.ErrNoInput) {
			return nil, "", fmt.Errorf("nothing to report: the bundle has no entries and no event contexts")
		}
		return nil, "", fmt.Errorf("failed to generate report: %w", err)
	}

	if opts.saveBundle {
		data, err := sess.ExportReportData()
		if err != nil {
			return nil, "", fmt.Errorf("failed to export bundle: %w", err)
		}
		if err := writeOutput(cmd, opts.bundle, data); err != nil {
			return nil, "", err
		}
	}
	return sess, lang, nil
}

func printReport(cmd *cobra.Command, r core.GeneratedReport, lang core.Language, opts *generateOptions) error {
	var data []byte
	switch opts.format {
	case "json":
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		data = append(b, '\n')
	default:
		data = []byte(render.Markdown(r, render.Options{Language: lang}))
	}

	fmt.Fprintln(cmd.ErrOrStderr(), summaryBox(r, lang))
	return writeOutput(cmd, opts.out, data)
}
