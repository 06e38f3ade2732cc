package processor

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/tuber/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.RecursiveCharacter
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}

	return Processor{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
		),
	}
}

// Split breaks the document into overlapping chunks tagged with the
// owning document id. The document id must be assigned before splitting.
func (p *Processor) Split(doc models.Document) ([]models.Chunk, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("document has no id")
	}

	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil, fmt.Errorf("document has no content to split")
	}

	texts, err := p.splitter.SplitText(content)
	if err != nil {
		return nil, fmt.Errorf("failed to split document: %v", err)
	}

	chunks := make([]models.Chunk, 0, len(texts))
	for i, text := range texts {
		metadata := map[string]interface{}{
			"documentId": doc.ID,
			"title":      doc.Title,
			"url":        doc.URL,
		}
		for k, v := range doc.Metadata {
			metadata[k] = v
		}

		chunks = append(chunks, models.Chunk{
			ID:         fmt.Sprintf("%s_%d", doc.ID, i),
			DocumentID: doc.ID,
			Content:    text,
			Index:      i,
			Metadata:   metadata,
		})
	}

	return chunks, nil
}
