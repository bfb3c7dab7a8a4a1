package userconfig

import (
	_ "embed"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/samber/lo"

	"github.com/SarthakJariwala/sqlsaber-web/errors"
)

type (
	// ProviderOption is one entry in the settings page provider dropdown.
	ProviderOption struct {
		Key   string `json:"key" yaml:"key"`
		Label string `json:"label" yaml:"label"`
	}

	// ModelOption is one selectable model. ID is in "provider:model" format.
	ModelOption struct {
		ID            string `json:"id" yaml:"id"`
		Name          string `json:"name" yaml:"name"`
		Description   string `json:"description" yaml:"description"`
		ContextLength int    `json:"context_length" yaml:"context_length"`
	}

	// ModelCatalog is the static snapshot of supported providers and models.
	// It never makes network requests; updating it means shipping a new
	// build with a refreshed models.yaml.
	ModelCatalog struct {
		Providers        []ProviderOption         `json:"providers" yaml:"providers"`
		ModelsByProvider map[string][]ModelOption `json:"models_by_provider" yaml:"models"`
	}
)

var (
	//go:embed data/models.yaml
	modelsYaml []byte

	catalog ModelCatalog
)

func init() {
	if err := yaml.Unmarshal(modelsYaml, &catalog); err != nil {
		panic(errors.Wrapf(err, "failed to parse model catalog"))
	}
}

// GetModelCatalog returns the catalog filtered to the requested providers.
// An empty filter means all providers. Unknown providers come back with an
// empty model list so the frontend can render a stable set of sections.
func GetModelCatalog(providers ...string) *ModelCatalog {
	requested := lo.Map(providers, func(p string, _ int) string {
		return NormalizeProvider(p)
	})

	result := &ModelCatalog{
		Providers:        catalog.Providers,
		ModelsByProvider: make(map[string][]ModelOption, len(catalog.Providers)),
	}

	for _, provider := range catalog.Providers {
		if len(providers) == 0 || lo.Contains(requested, provider.Key) {
			result.ModelsByProvider[provider.Key] = append([]ModelOption{}, catalog.ModelsByProvider[provider.Key]...)
		} else {
			result.ModelsByProvider[provider.Key] = []ModelOption{}
		}
	}

	return result
}

func NormalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func IsAllowedProvider(provider string) bool {
	normalized := NormalizeProvider(provider)

	return lo.ContainsBy(catalog.Providers, func(p ProviderOption) bool {
		return p.Key == normalized
	})
}
