package priority

import (
	"github.com/rajasatyajit/CommentIntel/internal/taxonomy"
	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

// Level is a negativity level of a single comment
type Level string

const (
	LevelNone     Level = "none"
	LevelMild     Level = "mild"
	LevelModerate Level = "moderate"
	LevelSevere   Level = "severe"
	LevelExtreme  Level = "extreme"
)

type levelSpec struct {
	level       Level
	score       int
	description string
	keywords    func(taxonomy.NegativityLexicon) []string
}

// ordered from strongest to weakest
var levels = []levelSpec{
	{LevelExtreme, 10, "extremely negative, immediate intervention", func(l taxonomy.NegativityLexicon) []string { return l.Extreme }},
	{LevelSevere, 8, "severely negative, fast resolution needed", func(l taxonomy.NegativityLexicon) []string { return l.Severe }},
	{LevelModerate, 5, "moderately negative, follow-up needed", func(l taxonomy.NegativityLexicon) []string { return l.Moderate }},
	{LevelMild, 3, "mildly negative, under observation", func(l taxonomy.NegativityLexicon) []string { return l.Mild }},
}

// NegativityAssessment is the strongest negativity level found in a comment
type NegativityAssessment struct {
	Level       Level    `json:"negativity_level"`
	Score       int      `json:"negativity_score"`
	Keywords    []string `json:"found_keywords"`
	Description string   `json:"description"`
}

// AssessNegativity scans text against the negativity lexicon and keeps only the
// highest matching level.
func (e *Engine) AssessNegativity(text string) NegativityAssessment {
	folded := e.tax.Normalize(text)
	for _, l := range levels {
		if found := utils.MatchKeywords(folded, l.keywords(e.tax.Negativity)); len(found) > 0 {
			return NegativityAssessment{
				Level:       l.level,
				Score:       l.score,
				Keywords:    found,
				Description: l.description,
			}
		}
	}
	return NegativityAssessment{
		Level:       LevelNone,
		Keywords:    []string{},
		Description: "no negativity detected",
	}
}
