// Package evidence retrieves the internal policy and external threat
// intelligence evidence the reasoning stages cite. Both adapters absorb their
// own failures: callers always get a (possibly empty) list, never an error.
package evidence

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed policies.yaml
var defaultPolicies []byte

// Policy is one entry of the local policy corpus.
type Policy struct {
	PolicyID string `yaml:"policy_id" json:"policy_id"`
	Version  string `yaml:"version" json:"version"`
	Rule     string `yaml:"rule" json:"rule"`
}

// PolicyCorpus is the read-only local copy of the internal fraud policies,
// used to recover identifiers the knowledge base fails to return.
type PolicyCorpus struct {
	policies []Policy
	rules    []string // normalised rule text, same index as policies
}

type corpusFile struct {
	Policies []Policy `yaml:"policies"`
}

// NewPolicyCorpus builds a corpus from policies, skipping entries without a
// rule or id. Order is preserved: recovery returns the first match.
func NewPolicyCorpus(policies []Policy) *PolicyCorpus {
	c := &PolicyCorpus{}
	for _, p := range policies {
		if strings.TrimSpace(p.PolicyID) == "" || strings.TrimSpace(p.Rule) == "" {
			continue
		}
		c.policies = append(c.policies, p)
		c.rules = append(c.rules, normalise(p.Rule))
	}
	return c
}

// ParsePolicyCorpus decodes a YAML corpus document.
func ParsePolicyCorpus(data []byte) (*PolicyCorpus, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse policy corpus: %w", err)
	}
	return NewPolicyCorpus(f.Policies), nil
}

// LoadPolicyCorpus reads a YAML corpus from path, or the embedded default
// corpus when path is empty.
func LoadPolicyCorpus(path string) (*PolicyCorpus, error) {
	if path == "" {
		return ParsePolicyCorpus(defaultPolicies)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy corpus: %w", err)
	}
	return ParsePolicyCorpus(data)
}

// Policies returns a copy of the corpus entries.
func (c *PolicyCorpus) Policies() []Policy {
	if c == nil {
		return nil
	}
	return append([]Policy(nil), c.policies...)
}

// minFragmentRunes is the shortest retrieved text matched as a fragment of a
// rule. Shorter text only matches when it contains a whole rule.
const minFragmentRunes = 12

// Recover finds the first policy whose rule text is contained in text, or
// whose rule contains text as a run of whole words of at least
// minFragmentRunes. Matching ignores case, runs of whitespace and Unicode
// composition differences.
func (c *PolicyCorpus) Recover(text string) (Policy, bool) {
	if c == nil {
		return Policy{}, false
	}
	needle := normalise(text)
	if needle == "" {
		return Policy{}, false
	}
	for i, rule := range c.rules {
		if strings.Contains(needle, rule) || isFragment(needle, rule) {
			return c.policies[i], true
		}
	}
	return Policy{}, false
}

func isFragment(needle, rule string) bool {
	if utf8.RuneCountInString(needle) < minFragmentRunes {
		return false
	}
	return strings.Contains(" "+rule+" ", " "+needle+" ")
}

func normalise(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKC.String(s))), " ")
}
