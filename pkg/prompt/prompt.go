// Package prompt compiles the text sent to the generation backend for a coordinate.
//
// Compilation is a pure function of Params: the same coordinate, mode, query, history and
// modifiers always produce byte-identical text. The templates live in templates.yaml and are
// embedded at build time.
package prompt

import (
	"bytes"
	_ "embed"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/pattern-space/pkg/conversation"
	"github.com/go-go-golems/pattern-space/pkg/coordinate"
)

//go:embed templates.yaml
var templatesYAML []byte

// TargetWords is the approximate reply length requested from the backend.
const TargetWords = 200

// Mode selects which prompt is compiled.
type Mode string

const (
	// Manifest produces the initial, context-free voice of a coordinate.
	Manifest Mode = "manifest"
	// Explore continues a conversation given a query and the prior turns.
	Explore Mode = "explore"
)

var (
	ErrUnknownMode  = errors.New("unknown mode")
	ErrMissingQuery = errors.New("query is required in explore mode")
)

// ParseMode accepts exactly "manifest" and "explore".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Manifest, Explore:
		return Mode(s), nil
	}
	return "", errors.Wrapf(ErrUnknownMode, "%q (expected %q or %q)", s, Manifest, Explore)
}

func (m Mode) String() string {
	return string(m)
}

// Modifiers are optional constraints appended to either prompt. Empty or whitespace-only
// values are treated as absent.
type Modifiers struct {
	Domain string
	Voice  string
}

// Params is everything a prompt is compiled from.
type Params struct {
	Coordinate string
	Mode       Mode
	Query      string
	History    []conversation.Turn
	Modifiers  Modifiers
}

type templateData struct {
	Coordinate  coordinate.Coordinate
	Query       string
	Transcript  []string
	Modifiers   Modifiers
	TargetWords int
}

type templateEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Template    string `yaml:"template"`
}

type templateFile struct {
	Templates []templateEntry `yaml:"templates"`
}

// Compiler renders prompts from a parsed template set. It is safe for concurrent use.
type Compiler struct {
	tmpl *template.Template
}

// NewCompiler parses the embedded templates.
func NewCompiler() (*Compiler, error) {
	return newCompilerFromYAML(templatesYAML)
}

func newCompilerFromYAML(b []byte) (*Compiler, error) {
	var f templateFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "decode prompt templates")
	}

	root := template.New("prompts").Funcs(sprig.TxtFuncMap()).Option("missingkey=error")
	for _, entry := range f.Templates {
		if strings.TrimSpace(entry.Name) == "" {
			return nil, errors.New("prompt template without a name")
		}
		if _, err := root.New(entry.Name).Parse(entry.Template); err != nil {
			return nil, errors.Wrapf(err, "parse prompt template %s", entry.Name)
		}
	}
	for _, m := range []Mode{Manifest, Explore} {
		if root.Lookup(string(m)) == nil {
			return nil, errors.Errorf("prompt template %s is missing", m)
		}
	}

	return &Compiler{tmpl: root}, nil
}

// Compile renders the prompt for p.
func (c *Compiler) Compile(p Params) (string, error) {
	data := templateData{
		Coordinate:  coordinate.Parse(p.Coordinate),
		Query:       p.Query,
		Modifiers:   p.Modifiers,
		TargetWords: TargetWords,
	}

	switch p.Mode {
	case Manifest:
	case Explore:
		if p.Query == "" {
			return "", ErrMissingQuery
		}
		data.Transcript = conversation.Lines(p.Coordinate, p.History)
	default:
		return "", errors.Wrapf(ErrUnknownMode, "%q", string(p.Mode))
	}

	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, string(p.Mode), data); err != nil {
		return "", errors.Wrapf(err, "render %s prompt", p.Mode)
	}
	return buf.String(), nil
}

var defaultCompiler = sync.OnceValues(NewCompiler)

// Compile renders p with the embedded templates.
func Compile(p Params) (string, error) {
	c, err := defaultCompiler()
	if err != nil {
		return "", err
	}
	return c.Compile(p)
}
