package prompts

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var rawCatalog []byte

// Prompt is one use case's static generation contract: the system prompt sent
// to the generator and the shape its output must satisfy.
type Prompt struct {
	Version        int    `yaml:"version"`
	ExpectArray    bool   `yaml:"expect_array"`
	ItemCount      int    `yaml:"item_count"`
	SystemPrompt   string `yaml:"system_prompt"`
	OutputContract string `yaml:"output_contract"`
}

type Catalog struct {
	byUseCase map[string]Prompt
}

type catalogFile struct {
	UseCases map[string]Prompt `yaml:"use_cases"`
}

// Load parses the embedded catalog. Called once at startup; a malformed
// catalog is a deployment error, not a runtime condition.
func Load() (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(rawCatalog, &file); err != nil {
		return nil, fmt.Errorf("prompt catalog: %w", err)
	}
	if len(file.UseCases) == 0 {
		return nil, fmt.Errorf("prompt catalog: no use cases defined")
	}
	for name, p := range file.UseCases {
		if strings.TrimSpace(p.SystemPrompt) == "" {
			return nil, fmt.Errorf("prompt catalog: use case %q has empty system prompt", name)
		}
		if p.ExpectArray && p.ItemCount <= 0 {
			return nil, fmt.Errorf("prompt catalog: use case %q expects an array but has no item count", name)
		}
	}
	return &Catalog{byUseCase: file.UseCases}, nil
}

func (c *Catalog) Get(useCase string) (Prompt, error) {
	p, ok := c.byUseCase[useCase]
	if !ok {
		return Prompt{}, fmt.Errorf("prompt catalog: unknown use case %q", useCase)
	}
	return p, nil
}
