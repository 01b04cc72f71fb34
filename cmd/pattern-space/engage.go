package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/pattern-space/pkg/config"
	"github.com/go-go-golems/pattern-space/pkg/engage"
	"github.com/go-go-golems/pattern-space/pkg/generation"
	"github.com/go-go-golems/pattern-space/pkg/tokens"
)

func newEngageCommand(v *viper.Viper) *cobra.Command {
	flags := &engagementFlags{}
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "engage <coordinate>",
		Short: "Run one engagement against the Messages API and print the voice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load(v)
			if err != nil {
				return err
			}
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}

			client := generation.NewClient(s.Generation, generation.WithLogger(log.Logger))
			opts := []engage.Option{engage.WithLogger(log.Logger)}
			if counter, err := tokens.NewCounter(tokens.DefaultEncoding); err == nil {
				opts = append(opts, engage.WithTokenCounter(counter))
			}
			svc, err := engage.NewService(client, opts...)
			if err != nil {
				return err
			}

			resp, err := svc.Engage(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeResponse(cmd.OutOrStdout(), resp, asJSON)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func writeResponse(w io.Writer, resp engage.Response, asJSON bool) error {
	if asJSON || !isTerminalWriter(w) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	md := fmt.Sprintf("# %s\n\n%s\n", resp.Coordinate, resp.Voice)
	styled, err := glamour.Render(md, "dark")
	if err != nil {
		_, err = fmt.Fprint(w, md)
		return err
	}
	_, err = fmt.Fprint(w, styled)
	return err
}
