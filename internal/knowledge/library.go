// Package knowledge holds the read-only library of sales snippets and picks
// the ones that fit a request.
package knowledge

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"salescomposer/internal/domain"
)

const DefaultSnippetLimit = 20

// GenericCompetitor marks comparisons that apply whichever competitor is named.
const GenericCompetitor = "generic"

//go:embed data/*.yaml
var embedded embed.FS

type CascadeStep struct {
	Level      int    `yaml:"level"`
	Text       string `yaml:"text"`
	Comparison string `yaml:"comparison,omitempty"`
	Data       string `yaml:"data,omitempty"`
}

type CascadeTemplate struct {
	ID    string        `yaml:"id"`
	Title string        `yaml:"title"`
	Chain []CascadeStep `yaml:"chain"`
}

type Library struct {
	benefits    []domain.KBSnippet
	comparisons []domain.KBSnippet
	cascades    []CascadeTemplate
	byID        map[string]domain.KBSnippet
	limit       int
}

// Load reads benefits.yaml, comparisons.yaml and cascades.yaml from dir, or
// the built-in library when dir is empty. A missing cascades.yaml is allowed.
func Load(dir string, limit int) (*Library, error) {
	var fsys fs.FS
	if strings.TrimSpace(dir) == "" {
		sub, err := fs.Sub(embedded, "data")
		if err != nil {
			return nil, err
		}
		fsys = sub
	} else {
		fsys = os.DirFS(dir)
	}
	return LoadFS(fsys, limit)
}

func LoadFS(fsys fs.FS, limit int) (*Library, error) {
	if limit <= 0 {
		limit = DefaultSnippetLimit
	}

	var benefits struct {
		Benefits []domain.KBSnippet `yaml:"benefits"`
	}
	if err := readYAML(fsys, "benefits.yaml", &benefits); err != nil {
		return nil, err
	}
	var comparisons struct {
		Comparisons []domain.KBSnippet `yaml:"comparisons"`
	}
	if err := readYAML(fsys, "comparisons.yaml", &comparisons); err != nil {
		return nil, err
	}
	var cascades struct {
		Cascades []CascadeTemplate `yaml:"cascades"`
	}
	if err := readYAML(fsys, "cascades.yaml", &cascades); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	lib := &Library{
		benefits:    benefits.Benefits,
		comparisons: comparisons.Comparisons,
		cascades:    cascades.Cascades,
		byID:        make(map[string]domain.KBSnippet),
		limit:       limit,
	}
	for _, group := range [][]domain.KBSnippet{lib.benefits, lib.comparisons} {
		for _, s := range group {
			if strings.TrimSpace(s.ID) == "" {
				return nil, fmt.Errorf("knowledge base: snippet with empty id (topic %q)", s.Topic)
			}
			if _, dup := lib.byID[s.ID]; dup {
				return nil, fmt.Errorf("knowledge base: duplicate snippet id %q", s.ID)
			}
			lib.byID[s.ID] = s
		}
	}
	return lib, nil
}

func readYAML(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

func (l *Library) Limit() int {
	return l.limit
}

func (l *Library) Benefits() []domain.KBSnippet {
	return append([]domain.KBSnippet(nil), l.benefits...)
}

func (l *Library) Comparisons() []domain.KBSnippet {
	return append([]domain.KBSnippet(nil), l.comparisons...)
}

func (l *Library) Templates() []CascadeTemplate {
	return append([]CascadeTemplate(nil), l.cascades...)
}

func (l *Library) Snippet(id string) (domain.KBSnippet, bool) {
	s, ok := l.byID[id]
	return s, ok
}
