package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"cashbot/internal/core"
)

// LLMParser is the fallback for messages the keyword parser cannot handle.
// It asks the model for a strict JSON object and validates the result against
// the fixed category and type sets.
type LLMParser struct {
	client *openai.Client
	model  string
}

func NewLLMParser(apiKey, model string) *LLMParser {
	return &LLMParser{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

const systemPrompt = `You extract a personal finance record from a chat message.
Respond with a JSON object only:
{"amount": <positive number>, "description": "<short text>", "category": "<one of: Food, Transport, Bills, Entertainment, Shopping, Health, Salary, Other>", "type": "<expense or income>"}
If the message contains no recordable amount, respond {"amount": 0}.`

type llmResult struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Type        string      `json:"type"`
}

func (p *LLMParser) Parse(ctx context.Context, text string) (ParsedMessage, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return ParsedMessage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ParsedMessage{}, fmt.Errorf("chat completion returned no choices")
	}

	return decodeLLMResult(resp.Choices[0].Message.Content)
}

func decodeLLMResult(content string) (ParsedMessage, error) {
	var result llmResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return ParsedMessage{}, fmt.Errorf("decode model response: %w", err)
	}

	amount, err := decimal.NewFromString(result.Amount.String())
	if err != nil || !amount.IsPositive() {
		return ParsedMessage{}, fmt.Errorf("model found no amount in message")
	}

	typ := core.TransactionType(strings.ToLower(result.Type))
	if !typ.Valid() {
		typ = core.Expense
	}

	category := core.Category(result.Category)
	if !core.ValidCategory(category) {
		category = "Other"
	}

	description := strings.TrimSpace(result.Description)
	if description == "" {
		description = "Expense"
	}

	return ParsedMessage{
		Amount:      amount.Round(2),
		Description: description,
		Category:    category,
		Type:        typ,
	}, nil
}
