// Package llm implements the AI oracle clients the pipeline depends on for
// field extraction and PCM line classification.
package llm

import (
	"context"
)

// Client defines the interface for oracle providers.
type Client interface {
	Classify(ctx context.Context, prompt string) (ClassificationResponse, error)
	Extract(ctx context.Context, prompt string) (ExtractionResponse, error)
}

// ClassificationResponse contains the oracle's PCM assignment for one line.
type ClassificationResponse struct {
	PcmClass     int
	AccountCode  string
	AccountLabel string
	Confidence   float64
	Reason       string
}

// ExtractionResponse contains the oracle's document parse. Fields holds the
// header key/value pairs; Lines holds one field map per invoice line. Either
// part may be empty depending on what the prompt asked for.
type ExtractionResponse struct {
	Fields map[string]string
	Lines  []map[string]string
}
