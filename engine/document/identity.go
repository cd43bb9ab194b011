package document

import (
	"crypto/sha256"
	"encoding/hex"
)

const idLength = 8

// ID derives a stable short identifier from a source URL. The truncation
// keeps keys compact at the cost of theoretical collisions, which is an
// accepted trade-off for a convenience key.
func ID(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])[:idLength]
}

// Document identifies a source PDF within the pipeline.
type Document struct {
	ID        string
	SourceURL string
}

// New builds a Document for the given source URL.
func New(sourceURL string) Document {
	return Document{ID: ID(sourceURL), SourceURL: sourceURL}
}
