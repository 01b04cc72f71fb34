package main

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/pattern-space/pkg/config"
	"github.com/go-go-golems/pattern-space/pkg/engage"
	"github.com/go-go-golems/pattern-space/pkg/events"
	"github.com/go-go-golems/pattern-space/pkg/generation"
	"github.com/go-go-golems/pattern-space/pkg/server"
	"github.com/go-go-golems/pattern-space/pkg/tokens"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /engage and the web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load(v)
			if err != nil {
				return err
			}
			return runServe(cmd, s)
		},
	}

	f := cmd.Flags()
	f.String(config.KeyHost, config.DefaultHost, "listen host")
	f.String(config.KeyPort, "", "listen port (default $PORT or 10000)")
	f.String(config.KeyStaticDir, "", "serve the UI from this directory instead of the embedded one")
	f.Bool(config.KeyRedisEnabled, false, "publish engagement events to Redis Streams")
	f.String(config.KeyRedisAddr, events.DefaultSettings().Addr, "Redis address")
	f.String(config.KeyRedisGroup, events.DefaultSettings().Group, "Redis consumer group")
	f.String(config.KeyRedisConsumer, events.DefaultSettings().Consumer, "Redis consumer name")
	for _, k := range []string{
		config.KeyHost, config.KeyPort, config.KeyStaticDir,
		config.KeyRedisEnabled, config.KeyRedisAddr, config.KeyRedisGroup, config.KeyRedisConsumer,
	} {
		cobra.CheckErr(v.BindPFlag(k, f.Lookup(k)))
	}
	return cmd
}

func runServe(cmd *cobra.Command, s config.Settings) error {
	ctx := cmd.Context()
	logger := log.Logger

	client := generation.NewClient(s.Generation, generation.WithLogger(logger.With().Str("component", "generation").Logger()))
	if !client.Enabled() {
		log.Warn().Msg("CLAUDE_API_KEY is not set, every engagement will use the fallback voice")
	}

	router, err := events.BuildRouter(ctx, s.Events, logger.With().Str("component", "events").Logger())
	if err != nil {
		return errors.Wrap(err, "build event router")
	}
	router.AddEngagementHandler("engagement-log", events.NewLogHandler(logger))

	opts := []engage.Option{
		engage.WithLogger(logger.With().Str("component", "engage").Logger()),
		engage.WithPublisher(router),
	}
	if counter, err := tokens.NewCounter(tokens.DefaultEncoding); err == nil {
		opts = append(opts, engage.WithTokenCounter(counter))
	} else {
		log.Warn().Err(err).Msg("token counting disabled")
	}
	svc, err := engage.NewService(client, opts...)
	if err != nil {
		_ = router.Close()
		return err
	}

	static, err := staticContent(s.StaticDir)
	if err != nil {
		_ = router.Close()
		return err
	}

	handler := server.NewHandler(engage.NewHTTPHandler(svc, logger), static)
	srv, err := server.New(s.Addr(), handler, router)
	if err != nil {
		_ = router.Close()
		return err
	}
	return srv.Run(ctx)
}
