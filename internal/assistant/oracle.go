package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"github.com/saldo-id/saldo/internal/platform/httpx"
)

// Oracle turns a free-text business event into a structured draft entry.
// Implementations are untrusted classifiers; callers validate everything.
type Oracle interface {
	Propose(ctx context.Context, event string, amount int64, chart string) (Draft, error)
}

const oraclePrompt = `You are the bookkeeping assistant of an Indonesian SME.
Interpret the business event below and propose a balanced double-entry journal.
Rules:
1. Use ONLY account codes from the chart of accounts.
2. Total debits MUST equal total credits.
3. All amounts are integer rupiah (no decimals, no separators).
4. Remember Indonesian tax treatment: 11%% PPN, 2%% PPh 23 on services.
5. Provide a confidence score between 0.0 and 1.0 and explain your reasoning.

Chart of accounts:
%s

Stated amount (rupiah, 0 when unspecified): %d
Event: %s`

type openAIOracle struct {
	client *openai.Client
	model  shared.ResponsesModel
}

// NewOpenAIOracle builds the production oracle. The model defaults to GPT-4o
// when empty.
func NewOpenAIOracle(apiKey, model string) Oracle {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	m := shared.ResponsesModel(model)
	if model == "" {
		m = shared.ResponsesModel(shared.ChatModelGPT4o)
	}
	return &openAIOracle{client: &client, model: m}
}

func (o *openAIOracle) Propose(ctx context.Context, event string, amount int64, chart string) (Draft, error) {
	schemaJSON, err := json.Marshal(draftSchema())
	if err != nil {
		return Draft{}, fmt.Errorf("marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return Draft{}, fmt.Errorf("unmarshal schema: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: o.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(fmt.Sprintf(oraclePrompt, chart, amount, event)),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "journal_entry_draft",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A proposed double-entry journal for the described event"),
				},
			},
		},
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	content := resp.OutputText()
	if content == "" {
		return Draft{}, fmt.Errorf("%w: empty oracle response", httpx.ErrUpstream)
	}

	var draft Draft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return Draft{}, fmt.Errorf("%w: unparseable oracle response: %v", httpx.ErrUpstream, err)
	}
	return draft, nil
}

func draftSchema() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var d Draft
	return reflector.Reflect(d)
}
