package classify

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSpec is the declarative form of a rule, as written in a rules file.
type RuleSpec struct {
	Type string `yaml:"type"`
	// Autocomplete matches the element's autocomplete attribute exactly,
	// case-insensitively.
	Autocomplete string `yaml:"autocomplete,omitempty"`
	// Pattern is tested against the whole signature.
	Pattern string `yaml:"pattern,omitempty"`
	// Exclude vetoes the rule when it matches the signature.
	Exclude string `yaml:"exclude,omitempty"`
}

// Rule is a compiled RuleSpec.
type Rule struct {
	Type         FieldType
	Autocomplete string
	Pattern      *regexp.Regexp
	Exclude      *regexp.Regexp
}

// Match reports whether the rule fires for an element with the given
// autocomplete attribute and signature.
func (r Rule) Match(autocomplete, signature string) bool {
	hit := r.Autocomplete != "" && strings.EqualFold(autocomplete, r.Autocomplete)
	if !hit && r.Pattern != nil {
		hit = r.Pattern.MatchString(signature)
	}
	if hit && r.Exclude != nil && r.Exclude.MatchString(signature) {
		return false
	}
	return hit
}

// Compile validates and compiles a spec.
func (s RuleSpec) Compile() (Rule, error) {
	ft, err := ParseFieldType(s.Type)
	if err != nil {
		return Rule{}, err
	}
	if s.Autocomplete == "" && s.Pattern == "" {
		return Rule{}, fmt.Errorf("classify: rule %s: needs autocomplete or pattern", s.Type)
	}
	r := Rule{Type: ft, Autocomplete: strings.ToLower(strings.TrimSpace(s.Autocomplete))}
	if s.Pattern != "" {
		if r.Pattern, err = regexp.Compile(s.Pattern); err != nil {
			return Rule{}, fmt.Errorf("classify: rule %s: pattern: %w", s.Type, err)
		}
	}
	if s.Exclude != "" {
		if r.Exclude, err = regexp.Compile(s.Exclude); err != nil {
			return Rule{}, fmt.Errorf("classify: rule %s: exclude: %w", s.Type, err)
		}
	}
	return r, nil
}

// defaultSpecs is the built-in table. Order is load-bearing: the generic
// expiry rule sits after cardNumber and before the month/year rules, and
// country comes after the address rules so "country" never reads as address
// text. The trailing name rule is the fallback for plain name fields.
var defaultSpecs = []RuleSpec{
	{Type: "cardNumber", Autocomplete: "cc-number", Pattern: `card number|cardnumber|cc-number|pan`},
	{Type: "exp", Autocomplete: "cc-exp", Pattern: `expir|expiry|exp date|mm\s*/\s*yy`},
	{Type: "expMonth", Autocomplete: "cc-exp-month", Pattern: `(exp.*month|month.*exp|\bmm\b)`},
	{Type: "expYear", Autocomplete: "cc-exp-year", Pattern: `(exp.*year|year.*exp|\byy\b|\byyyy\b)`},
	{Type: "cvc", Autocomplete: "cc-csc", Pattern: `cvc|cvv|csc|security code`},
	{Type: "fullName", Autocomplete: "cc-name", Pattern: `name on card|cardholder|card holder`},
	{Type: "email", Autocomplete: "email", Pattern: `\bemail\b`},
	{Type: "phone", Autocomplete: "tel", Pattern: `\b(phone|mobile|tel)\b`},
	{Type: "addressLine1", Autocomplete: "address-line1", Pattern: `address line 1|address1|line1`},
	{Type: "addressLine2", Autocomplete: "address-line2", Pattern: `address line 2|address2|line2`},
	{Type: "city", Autocomplete: "address-level2", Pattern: `\bcity\b|town`},
	{Type: "state", Autocomplete: "address-level1", Pattern: `state|province|region`},
	{Type: "zip", Autocomplete: "postal-code", Pattern: `zip|postal|postcode`},
	{Type: "country", Autocomplete: "country", Pattern: `\bcountry\b`},
	{Type: "fullName", Pattern: `billing name|full name|\bname\b`, Exclude: `user(name)?|company|organization|account`},
}

// DefaultSpecs returns a copy of the built-in table.
func DefaultSpecs() []RuleSpec {
	return append([]RuleSpec(nil), defaultSpecs...)
}

var defaultRules = mustCompile(defaultSpecs)

// DefaultRules returns the compiled built-in table.
func DefaultRules() []Rule {
	return append([]Rule(nil), defaultRules...)
}

func mustCompile(specs []RuleSpec) []Rule {
	rules, err := CompileAll(specs)
	if err != nil {
		panic(err)
	}
	return rules
}

// CompileAll compiles specs, keeping their order.
func CompileAll(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, s := range specs {
		r, err := s.Compile()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

type rulesFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// ParseRules reads a YAML rules table:
//
//	rules:
//	  - type: cardNumber
//	    autocomplete: cc-number
//	    pattern: 'card number|cardnumber'
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("classify: parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("classify: parse rules: empty table")
	}
	return CompileAll(f.Rules)
}

// LoadRulesFile reads a YAML rules table from disk.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classify: read rules: %w", err)
	}
	return ParseRules(data)
}

// MarshalRules renders specs in the rules file format.
func MarshalRules(specs []RuleSpec) ([]byte, error) {
	return yaml.Marshal(rulesFile{Rules: specs})
}
