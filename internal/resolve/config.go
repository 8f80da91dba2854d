// Package resolve implements cross-source precedence resolution for
// deal-level fields. Per-field source rankings are data, not code: they
// load from a YAML table with built-in defaults, so new document types or
// fields never touch resolver logic.
package resolve

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/deal-intake/internal/model"
)

// Config is the top-level precedence configuration.
type Config struct {
	Defaults DefaultConfig        `yaml:"defaults"`
	Fields   map[string]FieldRule `yaml:"fields"`
}

// Built-in divergence thresholds, used when neither the field rule nor
// the defaults table sets one.
const (
	builtinNumericDivergencePct = 20.0
	builtinDateDivergenceDays   = 30
)

// DefaultConfig holds the fallback ranking and divergence thresholds.
// Thresholds are pointers so a table can set an explicit zero ("any
// disagreement is divergence") distinctly from leaving it unset.
type DefaultConfig struct {
	Order                []model.DocType `yaml:"order"`
	NumericDivergencePct *float64        `yaml:"numeric_divergence_pct"`
	DateDivergenceDays   *int            `yaml:"date_divergence_days"`
}

// FieldRule overrides the ranking or thresholds for one field.
type FieldRule struct {
	Order                []model.DocType `yaml:"order"`
	NumericDivergencePct *float64        `yaml:"numeric_divergence_pct"`
	DateDivergenceDays   *int            `yaml:"date_divergence_days"`
}

func ptr[T any](v T) *T { return &v }

// DefaultConfig returns the built-in ranking tables. System-of-record
// exports outrank formal commercial documents, which outrank transcripts,
// which outrank informal correspondence. Champion identity is the
// exception: championship is behavioral, so conversational evidence
// outranks the system-of-record label.
func Default() *Config {
	standard := []model.DocType{
		model.DocTypeCRMExport,
		model.DocTypeQuote,
		model.DocTypeTranscript,
		model.DocTypeEmail,
		model.DocTypeGeneric,
	}
	behavioral := []model.DocType{
		model.DocTypeTranscript,
		model.DocTypeEmail,
		model.DocTypeCRMExport,
		model.DocTypeQuote,
		model.DocTypeGeneric,
	}
	return &Config{
		Defaults: DefaultConfig{
			Order:                standard,
			NumericDivergencePct: ptr(builtinNumericDivergencePct),
			DateDivergenceDays:   ptr(builtinDateDivergenceDays),
		},
		Fields: map[string]FieldRule{
			model.FieldChampion: {Order: behavioral},
		},
	}
}

// LoadConfig reads precedence tables from a YAML file, filling gaps from
// the built-in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: read config %s", path)
	}

	var wrapper struct {
		Precedence Config `yaml:"precedence"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "resolve: parse config")
	}

	cfg := &wrapper.Precedence
	def := Default()
	if len(cfg.Defaults.Order) == 0 {
		cfg.Defaults.Order = def.Defaults.Order
	}
	if cfg.Defaults.NumericDivergencePct == nil {
		cfg.Defaults.NumericDivergencePct = def.Defaults.NumericDivergencePct
	}
	if cfg.Defaults.DateDivergenceDays == nil {
		cfg.Defaults.DateDivergenceDays = def.Defaults.DateDivergenceDays
	}
	if cfg.Fields == nil {
		cfg.Fields = def.Fields
	}
	return cfg, nil
}

// rule returns the effective rule for a field: unset values fall back to
// the defaults table, then to the built-in thresholds. An explicit zero
// threshold is respected, not treated as unset.
func (c *Config) rule(field string) FieldRule {
	r, ok := c.Fields[field]
	if !ok {
		r = FieldRule{}
	}
	if len(r.Order) == 0 {
		r.Order = c.Defaults.Order
	}
	if r.NumericDivergencePct == nil {
		r.NumericDivergencePct = c.Defaults.NumericDivergencePct
	}
	if r.NumericDivergencePct == nil {
		r.NumericDivergencePct = ptr(builtinNumericDivergencePct)
	}
	if r.DateDivergenceDays == nil {
		r.DateDivergenceDays = c.Defaults.DateDivergenceDays
	}
	if r.DateDivergenceDays == nil {
		r.DateDivergenceDays = ptr(builtinDateDivergenceDays)
	}
	return r
}

// rank returns the precedence position of a source type; unlisted types
// sort after every listed one.
func (r FieldRule) rank(dt model.DocType) int {
	for i, t := range r.Order {
		if t == dt {
			return i
		}
	}
	return len(r.Order)
}
