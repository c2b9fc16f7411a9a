package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tripreport/internal/compose"
	"tripreport/internal/config"
	"tripreport/internal/core"
	"tripreport/internal/fetch"
	"tripreport/internal/llm"
	"tripreport/internal/logger"
	"tripreport/internal/render"
	"tripreport/internal/report"
	"tripreport/internal/session"
	"tripreport/internal/store"
)

// newGenerator builds the model client. Tests replace it with a fake.
var newGenerator = func(ctx context.Context, cfg config.AI) (llm.Generator, error) {
	return llm.NewFromConfig(ctx, cfg)
}

func openStore(ctx context.Context) (*store.Store, error) {
	db := config.GetDatabase()
	st, err := store.Open(ctx, db.Driver, db.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", db.Driver, err)
	}
	return st, nil
}

func newSynthesizer(ctx context.Context) (*report.Synthesizer, error) {
	ai := config.GetAI()
	gen, err := newGenerator(ctx, ai)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}
	return report.NewSynthesizer(gen, llm.RetryPolicyFromConfig(ai.Retry)), nil
}

func newComposer(ctx context.Context) (*compose.Composer, error) {
	cfg := config.Get()
	gen, err := newGenerator(ctx, cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}
	return compose.NewComposer(gen, llm.RetryPolicyFromConfig(cfg.AI.Retry), compose.Options{
		Fetcher:     fetch.NewFetcher(30 * time.Second),
		Concurrency: cfg.Compose.Concurrency,
	}), nil
}

// defaultSettings are the configured settings used until some are saved.
func defaultSettings() core.ContextSettings {
	d := config.Get().Defaults
	return core.ContextSettings{
		Persona:       d.Persona,
		Tone:          d.Tone,
		BrandName:     d.BrandName,
		BrandLocation: d.BrandLocation,
		EventContexts: append([]string(nil), d.EventContexts...),
		KeyThemes:     d.KeyThemes,
	}
}

// currentSettings returns the saved settings, or the configured defaults.
func currentSettings(ctx context.Context, st store.Repository) (core.ContextSettings, error) {
	saved, err := st.LoadSettings(ctx)
	if err != nil {
		return core.ContextSettings{}, err
	}
	if saved == nil {
		return defaultSettings(), nil
	}
	return *saved, nil
}

// loadSession seeds a session with the current settings and applies the
// report-data bundle at bundlePath, if any.
func loadSession(ctx context.Context, st store.Repository, bundlePath string) (*session.Session, error) {
	settings, err := currentSettings(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	sess := session.New(settings)

	if bundlePath == "" {
		return sess, nil
	}
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle %s: %w", bundlePath, err)
	}
	if err := sess.ImportReportData(data); err != nil {
		return nil, fmt.Errorf("failed to import bundle %s: %w", bundlePath, err)
	}
	logger.Info("Bundle loaded", "path", bundlePath, "entries", len(sess.Entries()))
	return sess, nil
}

// writeOutput writes data to path, or to cmd's stdout when path is empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	written, err := render.WriteFile(string(data), filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("✓ Wrote "+written))
	return nil
}
