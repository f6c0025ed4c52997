package taxonomy

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	apperrors "github.com/rajasatyajit/CommentIntel/internal/errors"
	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

//go:embed default.yaml
var defaultTaxonomy []byte

// DefaultLocale is used when the taxonomy does not name one.
const DefaultLocale = "tr"

// Default returns the built-in e-commerce taxonomy.
func Default() (*Taxonomy, error) {
	return Parse(defaultTaxonomy, "default.yaml")
}

// DefaultYAML returns the raw built-in taxonomy document.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultTaxonomy...)
}

// Load reads and validates a taxonomy file. An empty path loads the built-in taxonomy.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperrors.ConfigError{Source: path, Err: err}
	}
	return Parse(data, path)
}

// Parse decodes, validates and compiles a taxonomy document. Every problem found is
// reported in a single *errors.ConfigError so a broken file is rejected before any
// comment is processed.
func Parse(data []byte, source string) (*Taxonomy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t Taxonomy
	if err := dec.Decode(&t); err != nil {
		return nil, &apperrors.ConfigError{Source: source, Err: fmt.Errorf("decode: %w", err)}
	}
	if err := t.compile(); err != nil {
		return nil, &apperrors.ConfigError{Source: source, Err: err}
	}
	t.fingerprint = utils.HashString(string(data))
	return &t, nil
}

func (t *Taxonomy) compile() error {
	var errs apperrors.MultiError

	if t.Locale == "" {
		t.Locale = DefaultLocale
	}
	tag, err := language.Parse(t.Locale)
	if err != nil {
		errs.Addf("locale", "unknown locale %q: %v", t.Locale, err)
	}
	t.tag = tag
	fold := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, cases.Lower(t.tag).String(s))
			}
		}
		return out
	}

	for i, src := range t.PositiveIndicators {
		p, err := compilePattern(src)
		if err != nil {
			errs.Addf(fmt.Sprintf("positive_indicators[%d]", i), "%v", err)
			continue
		}
		t.positive = append(t.positive, p)
	}

	t.Negativity = NegativityLexicon{
		Extreme:  fold(t.Negativity.Extreme),
		Severe:   fold(t.Negativity.Severe),
		Moderate: fold(t.Negativity.Moderate),
		Mild:     fold(t.Negativity.Mild),
	}

	if len(t.Categories) == 0 {
		errs.Addf("categories", "at least one category is required")
	}

	t.index = make(map[string]*Category, len(t.Categories))
	for i, c := range t.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		if c == nil {
			errs.Addf(field, "empty category")
			continue
		}
		if c.ID == "" {
			errs.Addf(field+".id", "is required")
		} else if _, dup := t.index[c.ID]; dup {
			errs.Addf(field+".id", "duplicate category %q", c.ID)
		} else {
			t.index[c.ID] = c
			field = fmt.Sprintf("categories[%s]", c.ID)
		}

		if c.BusinessImpact < 1 || c.BusinessImpact > 10 {
			errs.Addf(field+".business_impact", "must be between 1 and 10, got %d", c.BusinessImpact)
		}
		if c.UrgencyMultiplier <= 0 {
			errs.Addf(field+".urgency_multiplier", "must be positive, got %g", c.UrgencyMultiplier)
		}
		if strings.TrimSpace(c.Department) == "" {
			errs.Addf(field+".department", "is required")
		}
		if strings.TrimSpace(c.Description) == "" {
			errs.Addf(field+".description", "is required")
		}

		c.Keywords = fold(c.Keywords)
		c.Positive = fold(c.Positive)
		c.Negative = fold(c.Negative)
		c.CriticalKeywords = fold(c.CriticalKeywords)
		if len(c.Keywords) == 0 {
			errs.Addf(field+".keywords", "at least one topic keyword is required")
		}

		c.primary = fold(c.PrimaryKeywords.Flatten())
		c.negative = c.negative[:0]
		for _, g := range c.NegativeContexts {
			group := PatternGroup{Name: g.Name}
			for j, src := range g.Items {
				p, err := compilePattern(src)
				if err != nil {
					errs.Addf(fmt.Sprintf("%s.negative_contexts.%s[%d]", field, g.Name, j), "%v", err)
					continue
				}
				group.Patterns = append(group.Patterns, p)
			}
			c.negative = append(c.negative, group)
		}
		c.excluded = c.excluded[:0]
		for j, src := range c.ExcludedContexts {
			p, err := compilePattern(src)
			if err != nil {
				errs.Addf(fmt.Sprintf("%s.excluded_contexts[%d]", field, j), "%v", err)
				continue
			}
			c.excluded = append(c.excluded, p)
		}
	}

	return errs.ErrorOrNil()
}
