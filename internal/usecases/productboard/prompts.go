package productboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/shared"
)

// PromptFeatureSummary is the name of the feature summary prompt.
const PromptFeatureSummary = "feature_summary"

const defaultAudience = "the product team"

// Prompts returns the catalogue prompts.
func (c *Catalogue) Prompts() []domain.Prompt {
	return []domain.Prompt{&featureSummary{catalogue: c}}
}

type featureSummary struct {
	catalogue *Catalogue
}

func (p *featureSummary) Name() string { return PromptFeatureSummary }

func (p *featureSummary) Description() string {
	return "Summarize a feature, its status and open questions for a given audience"
}

func (p *featureSummary) Arguments() []shared.PromptArgument {
	return []shared.PromptArgument{
		{Name: "feature_id", Description: "ID of the feature to summarize", Required: true},
		{Name: "audience", Description: "Who the summary is for, e.g. executives or engineering"},
	}
}

func (p *featureSummary) Execute(ctx context.Context, params map[string]any) ([]shared.PromptMessage, error) {
	id, err := requiredString(params, "feature_id")
	if err != nil {
		return nil, err
	}
	audience := stringParam(params, "audience")
	if audience == "" {
		audience = defaultAudience
	}

	feature, err := p.catalogue.api.Get(ctx, featurePath(id), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch feature %s", id)
	}
	data, err := json.MarshalIndent(feature, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode feature")
	}

	text := fmt.Sprintf(
		"Summarize the following Productboard feature for %s. "+
			"Cover what it is, its current status and any open questions.\n\n```json\n%s\n```",
		audience, data)
	return []shared.PromptMessage{
		{Role: "user", Content: shared.NewTextContent(text)},
	}, nil
}
