package orchestrate

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"riskgraph/pkg/types"
)

//go:embed prompts/*.tmpl
var defaultPrompts embed.FS

// promptStages are the stages that talk to the reasoning backend, each with
// a template named after it.
var promptStages = []string{
	StageAggregation,
	StageProFraud,
	StageProCustomer,
	StageArbiter,
	StageCustomerExplanation,
	StageAuditExplanation,
}

// Prompts holds the parsed prompt template of every reasoning stage.
type Prompts struct {
	byStage map[string]*template.Template
}

// promptData is what the templates see.
type promptData struct {
	Transaction types.Transaction
	Customer    types.CustomerProfile
	Signals     []string
	Internal    []types.EvidenceItem
	External    []types.EvidenceItem
	Aggregation string
	ProFraud    string
	ProCustomer string
	Outcome     types.Outcome
	Evidence    []string
}

var promptFuncs = template.FuncMap{
	"join": strings.Join,
	"none": func(items []types.EvidenceItem) bool { return len(items) == 0 },
}

// LoadPrompts parses one <stage>.tmpl per reasoning stage from dir, or the
// embedded defaults when dir is empty. A missing file in dir falls back to
// the embedded template of the same name.
func LoadPrompts(dir string) (*Prompts, error) {
	p := &Prompts{byStage: make(map[string]*template.Template, len(promptStages))}
	for _, stage := range promptStages {
		name := stage + ".tmpl"
		data, err := defaultPrompts.ReadFile("prompts/" + name)
		if err != nil {
			return nil, fmt.Errorf("read embedded template %s: %w", name, err)
		}
		if dir != "" {
			custom, err := os.ReadFile(filepath.Join(dir, name))
			switch {
			case err == nil:
				data = custom
			case !os.IsNotExist(err):
				return nil, fmt.Errorf("read template %s: %w", name, err)
			}
		}
		tmpl, err := template.New(stage).Funcs(promptFuncs).Option("missingkey=error").Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p.byStage[stage] = tmpl
	}
	return p, nil
}

// Render executes the template for stage.
func (p *Prompts) Render(stage string, data promptData) (string, error) {
	tmpl, ok := p.byStage[stage]
	if !ok {
		return "", fmt.Errorf("no prompt template for stage %s", stage)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", stage, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
