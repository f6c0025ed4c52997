package taxonomy

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/rajasatyajit/CommentIntel/internal/errors"
)

func TestDefault_LoadsInConfigurationOrder(t *testing.T) {
	tax, err := Default()
	if err != nil {
		t.Fatalf("default taxonomy must be valid: %v", err)
	}

	want := []string{"kargo", "kalite", "fiyat", "musteri_hizmeti", "urun_ozellikleri", "beden_uyum", "renk_gorsel"}
	if got := tax.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}

	kargo, ok := tax.Category("kargo")
	if !ok {
		t.Fatal("kargo category missing")
	}
	if kargo.BusinessImpact != 9 || kargo.UrgencyMultiplier != 1.2 || kargo.Department != "Lojistik" {
		t.Errorf("unexpected kargo profile: %+v", kargo)
	}
	if got := kargo.Primary()[:3]; !reflect.DeepEqual(got, []string{"kargo", "kargoya", "kargoda"}) {
		t.Errorf("primary keywords should keep sub-group order, got %v", got)
	}
	groups := kargo.NegativeGroups()
	if len(groups) != 3 || groups[0].Name != "gecikme_patterns" || groups[2].Name != "kayip_patterns" {
		t.Errorf("unexpected negative groups: %+v", groups)
	}
	if len(kargo.Excluded()) != 11 {
		t.Errorf("expected 11 excluded patterns, got %d", len(kargo.Excluded()))
	}

	fiyat, _ := tax.Category("fiyat")
	if len(fiyat.Primary()) != 0 || len(fiyat.NegativeGroups()) != 0 {
		t.Error("fiyat has no contextual rules")
	}
	if len(tax.Positive()) != 9 {
		t.Errorf("expected 9 positive indicators, got %d", len(tax.Positive()))
	}
	if tax.Fingerprint() == "" {
		t.Error("fingerprint should be set")
	}
}

func TestNormalize_UsesLocale(t *testing.T) {
	tax, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if got := tax.Normalize("KARGO KIRIK GELDİ"); got != "kargo kırık geldi" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestPattern_UnicodeWordClasses(t *testing.T) {
	tests := []struct {
		pattern string
		text    string
		want    int
	}{
		{`\b(kargo|paket)\s*\w*\s*(geç|gecik)`, "kargo çok geç geldi", 1},
		{`\bvazgeç\w*`, "bizim evin vazgeçilmezi", 1},
		{`\bgeç\w*`, "vazgeçilmez", 0},
		{`\bgelmedi\b`, "ürün gelmedi. gelmedi!", 2},
		{`\bkırık\s*(gel|çık)`, "kırık geldi", 1},
	}
	for _, tt := range tests {
		p := MustPattern(tt.pattern)
		if got := len(p.FindAll(tt.text)); got != tt.want {
			t.Errorf("%s on %q: %d matches, want %d", tt.pattern, tt.text, got, tt.want)
		}
		if p.MatchString(tt.text) != (tt.want > 0) {
			t.Errorf("%s on %q: MatchString disagrees with FindAll", tt.pattern, tt.text)
		}
	}
}

func TestParse_RejectsInvalidConfiguration(t *testing.T) {
	doc := `
locale: tr
positive_indicators: ['(unclosed']
categories:
  - id: kargo
    description: Teslimat
    department: Lojistik
    business_impact: 11
    urgency_multiplier: 0
    keywords: [kargo]
  - id: kargo
    description: ""
    department: ""
    business_impact: 5
    urgency_multiplier: 1
    keywords: []
    excluded_contexts: ['[a-']
`
	_, err := Parse([]byte(doc), "broken.yaml")
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Errorf("error should match ErrInvalidConfig: %v", err)
	}

	var multi apperrors.MultiError
	if !errors.As(err, &multi) {
		t.Fatalf("expected MultiError inside %T", err)
	}
	var fields []string
	for _, e := range multi.Errors {
		var ve apperrors.ValidationError
		if errors.As(e, &ve) {
			fields = append(fields, ve.Field)
		}
	}
	joined := strings.Join(fields, ",")
	for _, want := range []string{
		"positive_indicators[0]",
		"categories[kargo].business_impact",
		"categories[kargo].urgency_multiplier",
		"categories[1].id",
		"categories[1].department",
		"categories[1].keywords",
		"categories[1].excluded_contexts[0]",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing validation error for %s in %s", want, joined)
		}
	}
}

func TestParse_UnknownFieldsAndEmptyDocuments(t *testing.T) {
	tests := map[string]string{
		"unknown level":    "negativity:\n  catastrophic: [x]\ncategories: []\n",
		"empty categories": "locale: tr\ncategories: []\n",
		"empty document":   "",
		"bad locale":       "locale: '!!'\ncategories:\n  - {id: a, description: d, department: x, business_impact: 1, urgency_multiplier: 1, keywords: [a]}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc), name); !errors.Is(err, apperrors.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoad_FromFileAndFallback(t *testing.T) {
	if _, err := Load(""); err != nil {
		t.Fatalf("empty path should load the default taxonomy: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	doc := `
categories:
  - id: iade
    description: İade süreçleri
    department: Operasyon
    business_impact: 7
    urgency_multiplier: 1.0
    keywords: [İade, geri ödeme]
    primary_keywords: [iade]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	tax, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tax.Locale != DefaultLocale {
		t.Errorf("locale should default to %s, got %s", DefaultLocale, tax.Locale)
	}
	c, _ := tax.Category("iade")
	if !reflect.DeepEqual(c.Keywords, []string{"iade", "geri ödeme"}) {
		t.Errorf("keywords should be case folded, got %v", c.Keywords)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Errorf("missing file should be a configuration error, got %v", err)
	}
}

func TestNamedLists_RoundTrip(t *testing.T) {
	tax, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	kargo, _ := tax.Category("kargo")
	out, err := kargo.PrimaryKeywords.MarshalYAML()
	if err != nil {
		t.Fatal(err)
	}
	if out == nil {
		t.Fatal("expected a YAML node")
	}
	kalite, _ := tax.Category("kalite")
	list, err := kalite.PrimaryKeywords.MarshalYAML()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := list.([]string); !ok {
		t.Errorf("unnamed group should marshal as a plain list, got %T", list)
	}
}
