package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	kbtypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"riskgraph/internal/logging"
	"riskgraph/pkg/types"
)

// MockPolicyID marks the placeholder item returned when no knowledge base is configured.
const MockPolicyID = "MOCK-01"

// RetrieveAPI is the subset of the Bedrock Agent Runtime client used here.
type RetrieveAPI interface {
	Retrieve(ctx context.Context, params *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
}

// KnowledgeBase is the internal evidence adapter over a Bedrock knowledge base.
type KnowledgeBase struct {
	client RetrieveAPI
	kbID   string
	corpus *PolicyCorpus
	logger *slog.Logger
}

// KnowledgeBaseOption configures a KnowledgeBase.
type KnowledgeBaseOption func(*KnowledgeBase)

// WithKnowledgeBaseLogger overrides the component logger.
func WithKnowledgeBaseLogger(l *slog.Logger) KnowledgeBaseOption {
	return func(k *KnowledgeBase) { k.logger = l }
}

// NewKnowledgeBase returns an adapter for knowledge base kbID. A nil client or
// empty kbID puts the adapter in mock mode.
func NewKnowledgeBase(client RetrieveAPI, kbID string, corpus *PolicyCorpus, opts ...KnowledgeBaseOption) *KnowledgeBase {
	k := &KnowledgeBase{
		client: client,
		kbID:   strings.TrimSpace(kbID),
		corpus: corpus,
		logger: logging.New("evidence.kb"),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Configured reports whether the adapter talks to a real knowledge base.
func (k *KnowledgeBase) Configured() bool {
	return k.client != nil && k.kbID != ""
}

// Retrieve returns up to maxResults policy fragments relevant to query, in
// the service's ranking order. It never fails: a missing configuration yields
// one marked mock item, and a transport error yields an empty list.
func (k *KnowledgeBase) Retrieve(ctx context.Context, query string, maxResults int) []types.EvidenceItem {
	if !k.Configured() {
		k.logger.WarnContext(ctx, "knowledge base not configured, returning mock policy")
		return []types.EvidenceItem{{
			Kind:       types.EvidenceInternal,
			Identifier: MockPolicyID,
			ChunkID:    "0",
			Version:    "1.0",
			Text:       "Mock policy for query: " + query,
		}}
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	out, err := k.client.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(k.kbID),
		RetrievalQuery:  &kbtypes.KnowledgeBaseQuery{Text: aws.String(query)},
		RetrievalConfiguration: &kbtypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &kbtypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(int32(maxResults)),
			},
		},
	})
	if err != nil {
		k.logger.WarnContext(ctx, "knowledge base retrieve failed", "error", err)
		return []types.EvidenceItem{}
	}

	items := make([]types.EvidenceItem, 0, len(out.RetrievalResults))
	for i, r := range out.RetrievalResults {
		text := ""
		if r.Content != nil {
			text = aws.ToString(r.Content.Text)
		}
		item := types.EvidenceItem{
			Kind:       types.EvidenceInternal,
			Identifier: metadataString(r.Metadata, "policy_id"),
			ChunkID:    strconv.Itoa(i),
			Version:    metadataString(r.Metadata, "version"),
			Text:       text,
		}
		if item.Version == "" {
			item.Version = "latest"
		}
		k.resolveIdentifier(ctx, &item)
		items = append(items, item)
	}
	return items
}

// resolveIdentifier replaces an unresolved policy id with the first corpus
// policy whose rule matches the retrieved text.
func (k *KnowledgeBase) resolveIdentifier(ctx context.Context, item *types.EvidenceItem) {
	if !unresolved(item.Identifier) {
		return
	}
	item.Identifier = types.UnknownIdentifier
	p, ok := k.corpus.Recover(item.Text)
	if !ok {
		k.logger.DebugContext(ctx, "policy id not recovered", "chunk_id", item.ChunkID)
		return
	}
	item.Identifier = p.PolicyID
	if item.Version == "latest" && p.Version != "" {
		item.Version = p.Version
	}
	k.logger.DebugContext(ctx, "policy id recovered from corpus", "policy_id", p.PolicyID, "chunk_id", item.ChunkID)
}

func unresolved(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || strings.EqualFold(id, types.UnknownIdentifier)
}

// metadataString decodes a metadata attribute into its string form.
func metadataString(md map[string]document.Interface, key string) string {
	doc, ok := md[key]
	if !ok || doc == nil {
		return ""
	}
	var v any
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
