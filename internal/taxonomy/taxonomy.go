// Package taxonomy holds the static category configuration shared by the contextual
// engine, the classifier and the priority engine.
package taxonomy

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is one configured business topic.
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
	Department  string `yaml:"department" json:"department"`

	BusinessImpact    int     `yaml:"business_impact" json:"business_impact"`
	UrgencyMultiplier float64 `yaml:"urgency_multiplier" json:"urgency_multiplier"`

	// Classifier lexicon, matched as plain substrings.
	Keywords []string `yaml:"keywords" json:"keywords"`
	Positive []string `yaml:"positive" json:"positive"`
	Negative []string `yaml:"negative" json:"negative"`

	// Contextual rules. A category without primary keywords never gets a valid verdict.
	PrimaryKeywords  NamedLists `yaml:"primary_keywords,omitempty" json:"-"`
	NegativeContexts NamedLists `yaml:"negative_contexts,omitempty" json:"-"`
	ExcludedContexts []string   `yaml:"excluded_contexts,omitempty" json:"-"`

	CriticalKeywords []string `yaml:"critical_keywords" json:"critical_keywords"`
	Actions          []string `yaml:"actions,omitempty" json:"actions,omitempty"`

	primary  []string
	negative []PatternGroup
	excluded []*Pattern
}

// PatternGroup is a named set of compiled negative-context patterns.
type PatternGroup struct {
	Name     string
	Patterns []*Pattern
}

// Primary returns the flattened primary keywords in declaration order.
func (c *Category) Primary() []string { return c.primary }

// NegativeGroups returns the compiled negative-context groups.
func (c *Category) NegativeGroups() []PatternGroup { return c.negative }

// Excluded returns the compiled excluded-context patterns.
func (c *Category) Excluded() []*Pattern { return c.excluded }

// NegativityLexicon lists the keyword sets of each negativity level.
type NegativityLexicon struct {
	Extreme  []string `yaml:"extreme"`
	Severe   []string `yaml:"severe"`
	Moderate []string `yaml:"moderate"`
	Mild     []string `yaml:"mild"`
}

// Taxonomy is the validated, compiled category configuration. It is immutable after
// loading and safe for concurrent use.
type Taxonomy struct {
	Version            string            `yaml:"version"`
	Locale             string            `yaml:"locale"`
	PositiveIndicators []string          `yaml:"positive_indicators"`
	Negativity         NegativityLexicon `yaml:"negativity"`
	Categories         []*Category       `yaml:"categories"`

	tag         language.Tag
	positive    []*Pattern
	index       map[string]*Category
	fingerprint string
}

// Category looks up a category by id.
func (t *Taxonomy) Category(id string) (*Category, bool) {
	c, ok := t.index[id]
	return c, ok
}

// IDs returns category ids in configuration order.
func (t *Taxonomy) IDs() []string {
	ids := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		ids[i] = c.ID
	}
	return ids
}

// Positive returns the compiled category-agnostic positive indicators.
func (t *Taxonomy) Positive() []*Pattern { return t.positive }

// Fingerprint identifies the configuration content; equal fingerprints mean equal taxonomies.
func (t *Taxonomy) Fingerprint() string { return t.fingerprint }

// Normalize case-folds text with the taxonomy locale ("KIRIK" becomes "kırık" under tr).
func (t *Taxonomy) Normalize(text string) string {
	return cases.Lower(t.tag).String(text)
}
