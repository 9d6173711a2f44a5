package assets

import (
	_ "embed"
	"html/template"
	"sync"
)

//go:embed index.html.tmpl
var defaultIndex string

// DefaultTemplateName is the name of the built-in index page template.
const DefaultTemplateName = "index"

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
	CSSBundle  string       `json:"cssBundle"`
}

type ImportInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Pipeline manages the asset build process and script loading
type Pipeline struct {
	config   Config
	metadata *BuildMetadata
	tmpl     *template.Template
	mu       sync.RWMutex
}

// New creates a new asset pipeline using the built-in index template
func New(config Config) (*Pipeline, error) {
	return newPipeline(config, func(t *template.Template) (*template.Template, error) {
		return t.New(DefaultTemplateName).Parse(defaultIndex)
	})
}

// NewWithTemplate creates a new asset pipeline and loads a single template
func NewWithTemplate(config Config, templatePath string) (*Pipeline, error) {
	return newPipeline(config, func(t *template.Template) (*template.Template, error) {
		return t.ParseFiles(templatePath)
	})
}

func newPipeline(config Config, parse func(*template.Template) (*template.Template, error)) (*Pipeline, error) {
	tmpl, err := parse(template.New(""))
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config: config,
		tmpl:   tmpl,
	}, nil
}
