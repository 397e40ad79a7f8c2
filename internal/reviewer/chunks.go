package reviewer

import (
	"context"
	"fmt"

	"github.com/techspec-reviewer/backend/internal/analysis"
	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/prompt"
)

// AnnotateChunks reviews the text in chunks and returns one info annotation
// per answered chunk. Failed chunks are logged and skipped; only context
// cancellation aborts the run.
func AnnotateChunks(ctx context.Context, c Completer, text string, chunkSize int) ([]models.Annotation, error) {
	chunks := analysis.SplitText(text, chunkSize)
	annotations := make([]models.Annotation, 0, len(chunks))

	for i, chunk := range chunks {
		reply, err := c.Complete(ctx, prompt.ChunkSystemPrompt, chunk, DefaultChunkMaxTokens)
		if err != nil {
			if ctx.Err() != nil {
				return annotations, ctx.Err()
			}
			fmt.Printf("[Reviewer %s] Error analyzing chunk %d: %v\n", c.Name(), i, err)
			continue
		}
		annotations = append(annotations, models.Annotation{
			Position: i,
			Comment:  reply,
			Severity: models.SeverityInfo,
			Category: "review",
		})
	}
	return annotations, nil
}
