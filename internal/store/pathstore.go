package store

import (
	"context"
	"fmt"

	"github.com/dgallion1/novelsplit/internal/pathstore"
)

const pathstoreSource = "novelsplit"

// NovelKey is the pathstore prefix holding everything for one document.
func NovelKey(docID string) string { return "novels/" + docID }

// ChapterKey is the pathstore key of one chapter file.
func ChapterKey(docID, name string) string { return NovelKey(docID) + "/chapters/" + name }

// MetaKey is the pathstore key of a document's manifest.
func MetaKey(docID string) string { return NovelKey(docID) + "/meta" }

// PathstoreSink stores chapters as pathstore nodes and, on Finish, links them
// in reading order.
type PathstoreSink struct {
	client *pathstore.Client
	docID  string
}

func NewPathstoreSink(client *pathstore.Client, docID string) *PathstoreSink {
	return &PathstoreSink{client: client, docID: docID}
}

// PathstoreFactory shares one client across jobs.
func PathstoreFactory(client *pathstore.Client) Factory {
	return func(_ context.Context, docID string) (Sink, error) {
		if err := CheckName(docID); err != nil {
			return nil, err
		}
		return NewPathstoreSink(client, docID), nil
	}
}

func (s *PathstoreSink) Put(ctx context.Context, name, content string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	// Chapters sharing a name overwrite each other; the last write wins.
	return s.client.PutNode(ctx, ChapterKey(s.docID, name), pathstore.NodeRequest{
		Value:     content,
		MergeMode: "replace",
		Source:    pathstoreSource,
	})
}

// Finish writes the manifest and a "next" edge between consecutive distinct
// chapter files.
func (s *PathstoreSink) Finish(ctx context.Context, m Manifest) error {
	if err := s.client.PutNode(ctx, MetaKey(s.docID), pathstore.NodeRequest{
		Value:     m,
		MergeMode: "replace",
		Source:    pathstoreSource,
	}); err != nil {
		return fmt.Errorf("put manifest: %w", err)
	}

	for i := 1; i < len(m.Files); i++ {
		if m.Files[i] == m.Files[i-1] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.client.PutLink(ctx, pathstore.LinkRequest{
			From:    ChapterKey(s.docID, m.Files[i-1]),
			To:      ChapterKey(s.docID, m.Files[i]),
			Weight:  1,
			Summary: "next",
		}); err != nil {
			return fmt.Errorf("link %s: %w", m.Files[i], err)
		}
	}
	return nil
}

// Close is a no-op; the client is shared.
func (s *PathstoreSink) Close() error { return nil }
