package embedding

import "context"

// =============================================================================
// TASK TYPE SELECTION
// =============================================================================

// GenAI task types. Engines without task support ignore these.
const (
	TaskSemanticSimilarity = "SEMANTIC_SIMILARITY"
	TaskRetrievalQuery     = "RETRIEVAL_QUERY"
	TaskRetrievalDocument  = "RETRIEVAL_DOCUMENT"
	TaskClustering         = "CLUSTERING"
	TaskCodeRetrievalQuery = "CODE_RETRIEVAL_QUERY"
)

// EmbedQuery embeds search input, optimized for retrieval queries when the
// engine supports task types.
func EmbedQuery(ctx context.Context, e Engine, text string) ([]float32, error) {
	return embedWithTask(ctx, e, text, TaskRetrievalQuery)
}

// EmbedCodeQuery embeds search input aimed at indexed code and commits.
func EmbedCodeQuery(ctx context.Context, e Engine, text string) ([]float32, error) {
	return embedWithTask(ctx, e, text, TaskCodeRetrievalQuery)
}

// EmbedDocument embeds content being indexed for later retrieval.
func EmbedDocument(ctx context.Context, e Engine, text string) ([]float32, error) {
	return embedWithTask(ctx, e, text, TaskRetrievalDocument)
}

func embedWithTask(ctx context.Context, e Engine, text string, taskType string) ([]float32, error) {
	if te, ok := e.(TaskEmbedder); ok {
		return te.EmbedWithTask(ctx, text, taskType)
	}
	return e.Embed(ctx, text)
}
