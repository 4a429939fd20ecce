package main

import (
	"strings"

	"github.com/Laisky/errors/v2"

	cfg "github.com/skybridge-ai/bedrock-gateway/common/config"
)

// config captures what the sweep needs from the environment.
type config struct {
	APIBase  string
	APIKey   string
	Models   []string
	Variants []requestVariant
}

// loadConfig assembles the sweep configuration from the shared config package.
func loadConfig() (config, error) {
	base := cfg.SmokeAPIBase
	if base == "" {
		base = defaultAPIBase
	}

	key := cfg.SmokeAPIKey
	if key == "" {
		return config{}, errors.New("SMOKE_API_KEY must be set (a key minted by keyadmin, or the master key)")
	}

	models := parseModels(cfg.SmokeModels)
	if len(models) == 0 {
		models = parseModels(defaultSmokeModels)
	}

	variants, err := parseVariants(cfg.SmokeVariants)
	if err != nil {
		return config{}, errors.Wrap(err, "parse variants")
	}

	return config{
		APIBase:  strings.TrimSuffix(base, "/"),
		APIKey:   key,
		Models:   models,
		Variants: variants,
	}, nil
}

// parseModels tokenizes SMOKE_MODELS. Commas, semicolons, newlines and plain
// whitespace all separate entries.
func parseModels(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	normalized := raw
	for _, sep := range []string{",", ";", "\n", "\r"} {
		normalized = strings.ReplaceAll(normalized, sep, " ")
	}

	return strings.Fields(normalized)
}

// parseVariants resolves SMOKE_VARIANTS into the subset of probes to run.
// Entries match a variant key, one of its aliases, or a whole dialect group
// ("claude", "chat"). Empty selects everything.
func parseVariants(raw string) ([]requestVariant, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return requestVariants, nil
	}

	typeGroups := map[string]requestType{
		"claude":          requestTypeClaudeMessages,
		"claude_messages": requestTypeClaudeMessages,
		"chat":            requestTypeChatCompletion,
		"chat_completion": requestTypeChatCompletion,
	}

	selected := make([]requestVariant, 0, len(requestVariants))
	seen := make(map[string]bool, len(requestVariants))
	add := func(v requestVariant) {
		if !seen[v.Key] {
			selected = append(selected, v)
			seen[v.Key] = true
		}
	}

	for _, candidate := range parseModels(raw) {
		matched := false

		for _, variant := range requestVariants {
			if strings.EqualFold(candidate, variant.Key) {
				add(variant)
				matched = true
				break
			}
			for _, alias := range variant.Aliases {
				if strings.EqualFold(candidate, alias) {
					add(variant)
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if matched {
			continue
		}

		if groupType, ok := typeGroups[strings.ToLower(candidate)]; ok {
			for _, variant := range requestVariants {
				if variant.Type == groupType {
					add(variant)
				}
			}
			continue
		}

		return nil, errors.Errorf("unknown variant %q", candidate)
	}

	if len(selected) == 0 {
		return nil, errors.New("no variants selected")
	}

	return selected, nil
}
