// Package store persists chapter files produced by a split.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Sink persists finished chapter files. Put may be called concurrently for
// different names.
type Sink interface {
	Put(ctx context.Context, name, content string) error
	Close() error
}

// Finisher is implemented by sinks that record a summary once every chapter
// has been written.
type Finisher interface {
	Finish(ctx context.Context, m Manifest) error
}

// Manifest describes one completed split.
type Manifest struct {
	DocID     string    `json:"doc_id"`
	Title     string    `json:"title"`
	PatternID string    `json:"pattern_id"`
	Files     []string  `json:"files"` // in chapter order
	Warnings  int       `json:"warnings"`
	CreatedAt time.Time `json:"created_at"`
}

// Factory opens the sink for one split job.
type Factory func(ctx context.Context, docID string) (Sink, error)

// CheckName rejects names that would escape the sink's namespace.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid chapter file name %q", name)
	}
	return nil
}
