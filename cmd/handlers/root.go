/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tripreport/internal/config"
	"tripreport/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tripreport",
		Short: "Turn trip notes and photos into bilingual PR reports",
		Long: `tripreport turns event notes and photos into a bilingual (English and
Chinese) PR report with a model such as Gemini.

Core workflows:
  • Generate: report-data bundle → bilingual report in markdown or JSON
  • Translate: reuse the draft in one language and fill in the other
  • Publish: save generated reports to the gallery database
  • Serve: HTTP API and public gallery

Examples:
  # Generate a creative report in Chinese
  tripreport generate --bundle report-data.json --lang zh

  # Fill in the English side of an existing Chinese draft
  tripreport generate --bundle report-data.json --mode zh_to_en

  # Generate and publish
  tripreport publish --bundle report-data.json --lang en

  # Start the server
  tripreport serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.tripreport.yaml or $HOME/.tripreport.yaml)")

	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewPublishCmd())
	rootCmd.AddCommand(NewReportsCmd())
	rootCmd.AddCommand(NewSettingsCmd())
	rootCmd.AddCommand(NewAnalyzeURLCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	logger.Configure(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
	return nil
}
