package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"riskgraph/internal/logging"
)

// DefaultModelID is used when no model is configured.
const DefaultModelID = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"

const DefaultMaxTokens = 2048

// ConverseAPI is the subset of the Bedrock Runtime client used here.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Bedrock is a Backend over the Bedrock Converse API. Sampling temperature is
// fixed at zero.
type Bedrock struct {
	client    ConverseAPI
	modelID   string
	maxTokens int32
	logger    *slog.Logger
}

// BedrockOption configures a Bedrock backend.
type BedrockOption func(*Bedrock)

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int32) BedrockOption {
	return func(b *Bedrock) {
		if n > 0 {
			b.maxTokens = n
		}
	}
}

// WithBedrockLogger overrides the component logger.
func WithBedrockLogger(l *slog.Logger) BedrockOption {
	return func(b *Bedrock) { b.logger = l }
}

// NewBedrock returns a backend for modelID; empty selects DefaultModelID.
func NewBedrock(client ConverseAPI, modelID string, opts ...BedrockOption) *Bedrock {
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultModelID
	}
	b := &Bedrock{
		client:    client,
		modelID:   modelID,
		maxTokens: DefaultMaxTokens,
		logger:    logging.New("reasoning.bedrock"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ModelID returns the configured model.
func (b *Bedrock) ModelID() string { return b.modelID }

// Complete implements Backend.
func (b *Bedrock) Complete(ctx context.Context, prompt string) (string, error) {
	return b.converse(ctx, "", prompt)
}

// CompleteStructured implements Backend.
func (b *Bedrock) CompleteStructured(ctx context.Context, prompt string, schema *Schema, dst any) error {
	system := "Reply with a single JSON object and nothing else. It must conform to this JSON schema: " + schema.JSON()
	text, err := b.converse(ctx, system, prompt)
	if err != nil {
		return err
	}
	return schema.Decode(text, dst)
}

func (b *Bedrock) converse(ctx context.Context, system, prompt string) (string, error) {
	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			Temperature: aws.Float32(0),
			MaxTokens:   aws.Int32(b.maxTokens),
		},
	}
	if system != "" {
		in.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: system}}
	}

	b.logger.DebugContext(ctx, "converse", "model", b.modelID, "prompt_chars", len(prompt))
	out, err := b.client.Converse(ctx, in)
	if err != nil {
		return "", fmt.Errorf("bedrock converse: %w", err)
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("bedrock converse: unexpected output %T", out.Output)
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(t.Value)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	if out.Usage != nil {
		b.logger.DebugContext(ctx, "converse usage",
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	return text, nil
}
