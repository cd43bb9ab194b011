package chunk

// Chunk is a processed slice of document text ready for embedding.
type Chunk struct {
	Index int
	Text  string
}

// FromTexts assigns sequence indices to split chunk texts.
func FromTexts(texts []string) []Chunk {
	if len(texts) == 0 {
		return nil
	}
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{Index: i, Text: text}
	}
	return chunks
}
