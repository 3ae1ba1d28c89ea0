package media

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceylonroots/tour-admin/internal/types"
)

func newTestPipeline() *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline("", logger)
}

func fileSource(name, mime string, size int64) types.MediaSource {
	return types.MediaSource{Kind: types.MediaSourceFile, FileName: name, MIME: mime, Size: size, Data: []byte("not a real image")}
}

func urlSource(u string) types.MediaSource {
	return types.MediaSource{Kind: types.MediaSourceURL, URL: u}
}

func TestPipelineAdd(t *testing.T) {
	t.Run("accepts valid files and urls in order", func(t *testing.T) {
		p := newTestPipeline()
		err := p.Add([]types.MediaSource{
			fileSource("beach.jpg", "image/jpeg", 1024),
			urlSource("https://cdn.example.com/kandy.png"),
			fileSource("temple.webp", "image/webp", 2048),
		})
		require.NoError(t, err)

		sources := p.Sources()
		require.Len(t, sources, 3)
		assert.Equal(t, "beach.jpg", sources[0].FileName)
		assert.Equal(t, "https://cdn.example.com/kandy.png", sources[1].URL)
		assert.Equal(t, "temple.webp", sources[2].FileName)
	})

	t.Run("rejects batch on bad mime and names the file", func(t *testing.T) {
		p := newTestPipeline()
		err := p.Add([]types.MediaSource{
			fileSource("ok.png", "image/png", 10),
			fileSource("doc.pdf", "application/pdf", 10),
		})
		require.Error(t, err)
		var mediaErr *types.MediaError
		require.ErrorAs(t, err, &mediaErr)
		assert.Contains(t, mediaErr.Message, "doc.pdf")
		assert.Zero(t, p.Count(), "a rejected batch must not be partially applied")
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		p := newTestPipeline()
		err := p.Add([]types.MediaSource{fileSource("huge.jpg", "image/jpeg", MaxFileBytes+1)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "huge.jpg")
		assert.Contains(t, err.Error(), "10 MB")
	})

	t.Run("url validation", func(t *testing.T) {
		p := newTestPipeline()

		valid := []string{
			"https://example.com/a.jpg",
			"https://example.com/a.jpeg?w=800",
			"http://example.com/photos/b.GIF",
			"https://example.com/c.svg",
			"data:image/png;base64,iVBORw0KGgo=",
		}
		for _, u := range valid {
			assert.NoError(t, p.Add([]types.MediaSource{urlSource(u)}), u)
		}

		invalid := []string{
			"not a url",
			"/relative/path.jpg",
			"https://example.com/page.html",
			"ftp//broken/a.png",
		}
		for _, u := range invalid {
			q := newTestPipeline()
			err := q.Add([]types.MediaSource{urlSource(u)})
			require.Error(t, err, u)
			assert.Zero(t, q.Count())
		}
	})
}

func TestPipelineCountInvariant(t *testing.T) {
	p := newTestPipeline()
	for i := 0; i < MaxImages; i++ {
		require.NoError(t, p.Add([]types.MediaSource{urlSource(fmt.Sprintf("https://example.com/%d.jpg", i))}))
	}
	require.Equal(t, MaxImages, p.Count())

	err := p.Add([]types.MediaSource{urlSource("https://example.com/one-too-many.jpg")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only 0 more allowed")
	assert.Equal(t, MaxImages, p.Count(), "existing entries must be untouched")

	// Free two slots and the message reports the new capacity.
	require.NoError(t, p.Remove(0))
	require.NoError(t, p.Remove(0))
	err = p.Add(make([]types.MediaSource, 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only 2 more allowed")
}

func TestPipelineRemove(t *testing.T) {
	p := newTestPipeline()
	require.NoError(t, p.Add([]types.MediaSource{
		urlSource("https://example.com/a.jpg"),
		urlSource("https://example.com/b.jpg"),
		urlSource("https://example.com/c.jpg"),
	}))

	require.NoError(t, p.Remove(1))
	sources := p.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, "https://example.com/a.jpg", sources[0].URL)
	assert.Equal(t, "https://example.com/c.jpg", sources[1].URL)

	assert.Error(t, p.Remove(5))
	assert.Error(t, p.Remove(-1))
}

func TestPipelineReleaseIsIdempotent(t *testing.T) {
	p := newTestPipeline()
	require.NoError(t, p.Add([]types.MediaSource{fileSource("a.jpg", "image/jpeg", 4)}))

	assert.NotPanics(t, func() {
		p.Release()
		p.Release()
	})
}

func TestPipelineRejectsUnknownKind(t *testing.T) {
	p := newTestPipeline()
	err := p.Add([]types.MediaSource{{Kind: types.MediaSourceKind("carrier-pigeon")}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "carrier-pigeon"))
}
