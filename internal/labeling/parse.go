package labeling

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cubby/internal/queue"
	"cubby/internal/services"
	"cubby/internal/services/llm"
	"cubby/internal/textutil"
)

const rawSnippetLimit = 500

type candidate struct {
	Name         string   `json:"name" validate:"required"`
	StartSeconds float64  `json:"start_seconds" validate:"gte=0"`
	EndSeconds   float64  `json:"end_seconds" validate:"gtfield=StartSeconds"`
	Confidence   *float64 `json:"confidence"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseLabels decodes a model response into labels. Code fences are
// stripped; a payload that is not a JSON array is a transient error carrying
// the start of the raw response. Entries that fail validation are dropped.
func ParseLabels(raw string, defaultConfidence float64) ([]queue.Label, error) {
	cleaned := llm.StripCodeFence(raw)
	var entries []json.RawMessage
	err := json.Unmarshal([]byte(cleaned), &entries)
	if err == nil && entries == nil {
		err = errors.New("payload is null")
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "label_generation", "parse response",
			fmt.Sprintf("expected a JSON array; response was: %s", textutil.TruncateRunes(raw, rawSnippetLimit)), err)
	}

	titleCase := cases.Title(language.English, cases.NoLower)
	labels := make([]queue.Label, 0, len(entries))
	for _, entry := range entries {
		var c candidate
		if err := json.Unmarshal(entry, &c); err != nil {
			continue
		}
		c.Name = strings.Join(strings.Fields(c.Name), " ")
		if err := validate.Struct(c); err != nil {
			continue
		}
		confidence := defaultConfidence
		if c.Confidence != nil {
			confidence = *c.Confidence
		}
		labels = append(labels, queue.Label{
			Name:         titleCase.String(c.Name),
			Confidence:   clamp(confidence),
			StartSeconds: c.StartSeconds,
			EndSeconds:   c.EndSeconds,
		})
	}
	return labels, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
