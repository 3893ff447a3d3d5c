package genai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	sdk "google.golang.org/genai"

	"adforge/internal/domain"
)

// CopySchemaVersion identifies the structured output contract below. Bump it
// whenever a field is added, renamed or re-described.
const CopySchemaVersion = "copy/v1"

var copyTopLevelKeys = []string{
	"assumptions", "hooks", "primaryTexts", "shortForms", "headlines", "descriptions", "ctaRecommendations",
}

// copyItemKeys lists the required keys of each array element.
var copyItemKeys = map[string][]string{
	"hooks":        {"type", "text"},
	"primaryTexts": {"framework", "content"},
	"shortForms":   {"content"},
	"headlines":    {"angle", "text"},
	"descriptions": {"text"},
}

var ctaKeys = []string{"primary", "secondary", "funnelGuidance"}

func stringSchema(description string) *sdk.Schema {
	return &sdk.Schema{Type: sdk.TypeString, Description: description}
}

func objectArray(description string, props map[string]*sdk.Schema, required ...string) *sdk.Schema {
	return &sdk.Schema{
		Type:        sdk.TypeArray,
		Description: description,
		Items: &sdk.Schema{
			Type:       sdk.TypeObject,
			Properties: props,
			Required:   required,
		},
	}
}

func ctaOptionSchema() *sdk.Schema {
	return &sdk.Schema{
		Type: sdk.TypeObject,
		Properties: map[string]*sdk.Schema{
			"button":    stringSchema(""),
			"rationale": stringSchema(""),
		},
	}
}

// copySchema mirrors domain.CopyPackage. Cardinalities and length limits are
// carried as descriptions for the model and never checked locally.
func copySchema() *sdk.Schema {
	return &sdk.Schema{
		Type: sdk.TypeObject,
		Properties: map[string]*sdk.Schema{
			"assumptions": {
				Type:        sdk.TypeArray,
				Items:       &sdk.Schema{Type: sdk.TypeString},
				Description: "Short list of strategic inferences drawn from the brief and image.",
			},
			"hooks": objectArray(
				fmt.Sprintf("%d distinct hooks, one per required psychological mechanism.", domain.ExpectedHooks),
				map[string]*sdk.Schema{
					"type": stringSchema("One of: Curiosity, Pattern Interrupt, Problem Callout, Myth-Buster, Social Proof, Outcome Visualization, Urgency, Identity"),
					"text": stringSchema(""),
				},
				"type", "text",
			),
			"primaryTexts": objectArray(
				fmt.Sprintf("%d primary texts using the PAS, AIDA and BAB frameworks, 80-180 words each.", domain.ExpectedPrimaryTexts),
				map[string]*sdk.Schema{
					"framework": stringSchema("PAS, AIDA, or BAB"),
					"content":   stringSchema(""),
				},
				"framework", "content",
			),
			"shortForms": objectArray(
				fmt.Sprintf("%d Stories/Reels variations (40-60 words).", domain.ExpectedShortForms),
				map[string]*sdk.Schema{"content": stringSchema("")},
				"content",
			),
			"headlines": objectArray(
				fmt.Sprintf("%d headlines under 40 characters each.", domain.ExpectedHeadlines),
				map[string]*sdk.Schema{
					"angle": stringSchema("Benefit, Curiosity, Outcome, Urgency, or Social Proof"),
					"text":  stringSchema(""),
				},
				"angle", "text",
			),
			"descriptions": objectArray(
				fmt.Sprintf("%d link descriptions (15-30 words).", domain.ExpectedDescriptions),
				map[string]*sdk.Schema{"text": stringSchema("")},
				"text",
			),
			"ctaRecommendations": {
				Type: sdk.TypeObject,
				Properties: map[string]*sdk.Schema{
					"primary":        ctaOptionSchema(),
					"secondary":      ctaOptionSchema(),
					"funnelGuidance": stringSchema(""),
				},
				Required: ctaKeys,
			},
		},
		Required: copyTopLevelKeys,
	}
}

// decodeCopyPackage parses the model's text into a CopyPackage. Any payload
// that is not JSON, has wrong value types or misses a required key yields a
// MalformedResponse failure and no partial result.
func decodeCopyPackage(raw string) (*domain.CopyPackage, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, domain.NewFailure(domain.KindEmptyResponse, "Strategy engine returned an empty response.")
	}
	fragment := extractJSONFragment(raw)
	if err := validateCopyShape([]byte(fragment)); err != nil {
		return nil, malformed(err)
	}

	var pkg domain.CopyPackage
	if err := json.Unmarshal([]byte(fragment), &pkg); err != nil {
		return nil, malformed(err)
	}
	return &pkg, nil
}

func malformed(err error) *domain.Failure {
	return domain.WrapFailure(domain.KindMalformedResponse, err, fmt.Sprintf("Strategy engine returned a malformed response: %v", err))
}

func validateCopyShape(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}
	if top == nil {
		return fmt.Errorf("payload is not an object")
	}
	if err := requireKeys("", top, copyTopLevelKeys); err != nil {
		return err
	}

	for _, field := range copyTopLevelKeys {
		keys, ok := copyItemKeys[field]
		if !ok {
			continue
		}
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(top[field], &items); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		for i, item := range items {
			if err := requireKeys(fmt.Sprintf("%s[%d].", field, i), item, keys); err != nil {
				return err
			}
		}
	}

	var cta map[string]json.RawMessage
	if err := json.Unmarshal(top["ctaRecommendations"], &cta); err != nil {
		return fmt.Errorf("ctaRecommendations: %w", err)
	}
	return requireKeys("ctaRecommendations.", cta, ctaKeys)
}

func requireKeys(prefix string, obj map[string]json.RawMessage, keys []string) error {
	if obj == nil {
		return fmt.Errorf("%s: expected object", strings.TrimSuffix(prefix, "."))
	}
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("missing required field %s%s", prefix, key)
		}
	}
	return nil
}

// extractJSONFragment strips code fences and surrounding prose so that a
// model answer wrapped in markdown still parses.
func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
