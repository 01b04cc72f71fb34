package main

import (
	"embed"
	"io"
	"io/fs"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/pattern-space/pkg/config"
	"github.com/go-go-golems/pattern-space/pkg/logging"
)

//go:embed static/*
var staticFS embed.FS

var logCloser io.Closer

func newRootCommand(v *viper.Viper) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "pattern-space",
		Short:         "Speak with patterns of collaborative intelligence",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadConfigFile(v, configFile); err != nil {
				return err
			}
			closer, err := logging.Init(config.LoggingSettings(v))
			if err != nil {
				return err
			}
			logCloser = closer
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default $HOME/.pattern-space/config.yaml)")
	pf.String(config.KeyLogLevel, "info", "log level (trace, debug, info, warn, error)")
	pf.String(config.KeyLogFormat, logging.FormatText, "log format (text, json)")
	pf.String(config.KeyLogFile, "", "write logs to this file, rotated")
	pf.String(config.KeyAPIKey, "", "Anthropic API key (default $CLAUDE_API_KEY)")
	pf.String(config.KeyEndpoint, "", "Messages API endpoint")
	pf.Duration(config.KeyGenerationTimeout, 0, "generation timeout")
	for _, k := range []string{config.KeyLogLevel, config.KeyLogFormat, config.KeyLogFile, config.KeyAPIKey, config.KeyEndpoint, config.KeyGenerationTimeout} {
		cobra.CheckErr(v.BindPFlag(k, pf.Lookup(k)))
	}
	root.AddCommand(
		newServeCommand(v),
		newCompileCommand(),
		newEngageCommand(v),
	)
	return root
}

func staticContent(dir string) (fs.FS, error) {
	if dir != "" {
		st, err := os.Stat(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "static dir %s", dir)
		}
		if !st.IsDir() {
			return nil, errors.Errorf("static dir %s is not a directory", dir)
		}
		return os.DirFS(dir), nil
	}
	return fs.Sub(staticFS, "static")
}

func main() {
	v := config.NewViper()
	if err := newRootCommand(v).Execute(); err != nil {
		log.Error().Err(err).Msg("pattern-space failed")
		os.Exit(1)
	}
}
