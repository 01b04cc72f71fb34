package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tiktoken-go/tokenizer"

	"github.com/go-go-golems/pattern-space/pkg/conversation"
	"github.com/go-go-golems/pattern-space/pkg/engage"
	"github.com/go-go-golems/pattern-space/pkg/prompt"
	"github.com/go-go-golems/pattern-space/pkg/tokens"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))

// engagementFlags are shared by compile and engage.
type engagementFlags struct {
	mode        string
	query       string
	historyFile string
	domain      string
	voice       string
}

func (f *engagementFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "type", "t", string(prompt.Manifest), "manifest or explore")
	fl.StringVarP(&f.query, "query", "q", "", "question for explore mode")
	fl.StringVar(&f.historyFile, "history", "", "YAML or JSON file with prior turns ({role, content})")
	fl.StringVar(&f.domain, "domain", "", "domain modifier")
	fl.StringVar(&f.voice, "voice", "", "voice modifier")
}

// request builds the same Request the HTTP handler would.
func (f *engagementFlags) request(coordinate string) (engage.Request, error) {
	var history []conversation.Turn
	if f.historyFile != "" {
		fh, err := os.Open(f.historyFile)
		if err != nil {
			return engage.Request{}, errors.Wrap(err, "open history")
		}
		defer func() { _ = fh.Close() }()
		history, err = conversation.Decode(fh)
		if err != nil {
			return engage.Request{}, err
		}
	}

	body := engage.RequestBody{
		Coordinate:          &coordinate,
		Type:                &f.mode,
		ConversationHistory: history,
		Domain:              f.domain,
		Voice:               f.voice,
	}
	if f.query != "" {
		body.Query = &f.query
	}
	return body.ToRequest()
}

func newCompileCommand() *cobra.Command {
	flags := &engagementFlags{}
	var encoding string

	cmd := &cobra.Command{
		Use:   "compile <coordinate>",
		Short: "Print the prompt an engagement would send, with its token count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}
			p, err := prompt.Compile(prompt.Params{
				Coordinate: req.Coordinate,
				Mode:       req.Mode,
				Query:      req.Query,
				History:    req.History,
				Modifiers:  prompt.Modifiers{Domain: req.Domain, Voice: req.Voice},
			})
			if err != nil {
				return err
			}
			counter, err := tokens.NewCounter(tokenizer.Encoding(encoding))
			if err != nil {
				return err
			}
			n, err := counter.Count(p)
			if err != nil {
				return err
			}
			return writeCompiled(cmd.OutOrStdout(), req, p, n, counter.Encoding())
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&encoding, "encoding", string(tokens.DefaultEncoding), "tokenizer encoding used for the count")
	return cmd
}

func writeCompiled(w io.Writer, req engage.Request, p string, n int, encoding string) error {
	header := fmt.Sprintf("%s · %s · %d tokens (%s)", req.Coordinate, req.Mode, n, encoding)
	if isTerminalWriter(w) {
		header = headerStyle.Render(header)
	}
	_, err := fmt.Fprintf(w, "%s\n\n%s\n", header, p)
	return err
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
