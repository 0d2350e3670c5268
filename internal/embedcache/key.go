package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/xxxsen/lexdesk/internal/ai"
)

func buildCacheKey(modelName, taskType, text string) (string, string, string) {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(hash[:])
	return "embed:" + modelName + ":" + taskType + ":" + contentHash, contentHash, modelName
}

// fillMisses embeds the texts whose slot in out is still nil with a single
// call to next and writes the results back in place. onFill sees each new
// vector with its input position.
func fillMisses(ctx context.Context, next ai.IEmbedder, texts []string, taskType string, out [][]float32, onFill func(i int, vec []float32)) error {
	var missIdx []int
	var missTexts []string
	for i, vec := range out {
		if vec == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	if len(missIdx) == 0 {
		return nil
	}
	res, err := next.EmbedBatch(ctx, missTexts, taskType)
	if err != nil {
		return err
	}
	if len(res) != len(missIdx) {
		return ai.ErrEmbeddingMismatch
	}
	for j, i := range missIdx {
		out[i] = res[j]
		if onFill != nil {
			onFill(i, res[j])
		}
	}
	return nil
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
