package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSink_Put(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink, err := NewDirSink(fs, "/out")
	require.NoError(t, err)

	require.NoError(t, sink.Put(context.Background(), "001화.txt", "1화 시작\n\n본문"))
	require.NoError(t, sink.Put(context.Background(), "001화.txt", "덮어쓰기\n\n본문"))

	got, err := afero.ReadFile(fs, "/out/001화.txt")
	require.NoError(t, err)
	assert.Equal(t, "덮어쓰기\n\n본문", string(got), "later writes replace earlier ones")
}

func TestDirSink_RejectsEscapingNames(t *testing.T) {
	sink, err := NewDirSink(afero.NewMemMapFs(), "/out")
	require.NoError(t, err)
	for _, name := range []string{"", "..", "../x.txt", `a\b.txt`, "sub/001.txt"} {
		assert.Error(t, sink.Put(context.Background(), name, "x"), name)
	}
}

func TestDirSink_CancelledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink, err := NewDirSink(fs, "/out")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Put(ctx, "001화.txt", "x"), context.Canceled)

	exists, err := afero.Exists(fs, "/out/001화.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDirFactory(t *testing.T) {
	fs := afero.NewMemMapFs()
	open := DirFactory(fs, "/root")

	sink, err := open(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/root", "doc-1"), sink.(*DirSink).Dir())

	_, err = open(context.Background(), "../etc")
	assert.Error(t, err)
}
