// Package chunker splits documents into overlapping sentence windows.
package chunker

import (
	"strconv"
	"strings"

	"localrag/internal/retrieval"
)

// SentenceChunker splits text into sentence-based chunks with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

// NewSentenceChunker clamps its arguments: at least one sentence per chunk and
// an overlap strictly smaller than the window.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{sentencesPerChunk: sentencesPerChunk, overlapSentences: overlapSentences}
}

// Chunk returns the windows of doc in order. Every chunk carries the
// document's source and metadata. Blank documents produce no chunks.
func (c *SentenceChunker) Chunk(doc retrieval.Document) ([]retrieval.Chunk, error) {
	sentences := retrieval.Sentences(doc.Content)
	if len(sentences) == 0 {
		return nil, nil
	}
	var chunks []retrieval.Chunk
	for i, idx := 0, 0; ; idx++ {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, retrieval.Chunk{
			DocumentID: doc.ID,
			ChunkID:    doc.ID + ":" + strconv.Itoa(idx),
			Source:     doc.Source,
			Text:       strings.Join(sentences[i:end], " "),
			Index:      idx,
			Metadata:   doc.Metadata,
		})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks, nil
}
