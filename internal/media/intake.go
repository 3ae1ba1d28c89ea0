// Package media accumulates and validates the ordered image sources for one
// tour edit session before synchronization.
package media

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/ceylonroots/tour-admin/internal/types"
)

const (
	// MaxImages is the total number of images a tour may carry.
	MaxImages = 10
	// MaxFileBytes is the per-file upload limit.
	MaxFileBytes = 10 << 20

	previewWidth  = 320
	previewHeight = 240
)

var allowedMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var imageURLRe = regexp.MustCompile(`(?i)\.(jpe?g|png|webp|gif|svg)(\?.*)?$`)

type entry struct {
	source      types.MediaSource
	previewPath string
}

// Pipeline holds the validated, ordered, count-bounded image sources of one
// edit session. It owns the transient preview files it creates and must
// release them exactly once, either entry by entry on removal or all at once
// when the session ends.
type Pipeline struct {
	logger     *slog.Logger
	previewDir string
	entries    []entry
	released   bool
}

func NewPipeline(previewDir string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger:     logger,
		previewDir: previewDir,
	}
}

// Add validates one intake batch and appends it in order. A single violation
// rejects the whole batch and leaves the accepted entries untouched.
func (p *Pipeline) Add(batch []types.MediaSource) error {
	l := p.logger.With(slog.String("method", "Add"), slog.Int("batch_size", len(batch)))

	remaining := MaxImages - len(p.entries)
	if len(batch) > remaining {
		l.Warn("Media batch rejected, image limit reached", slog.Int("remaining", remaining))
		return &types.MediaError{Message: fmt.Sprintf("image limit of %d reached: only %d more allowed", MaxImages, remaining)}
	}

	for _, src := range batch {
		if err := validateSource(src); err != nil {
			l.Warn("Media batch rejected", slog.String("error", err.Error()))
			return err
		}
	}

	for _, src := range batch {
		e := entry{source: src}
		if src.Kind == types.MediaSourceFile {
			e.previewPath = p.writePreview(src)
		}
		p.entries = append(p.entries, e)
	}
	l.Debug("Media batch accepted", slog.Int("total", len(p.entries)))
	return nil
}

func validateSource(src types.MediaSource) error {
	switch src.Kind {
	case types.MediaSourceFile:
		if !allowedMIMEs[strings.ToLower(src.MIME)] {
			return &types.MediaError{Message: fmt.Sprintf("file %q has unsupported image type %q (allowed: JPEG, PNG, WEBP, GIF)", src.FileName, src.MIME)}
		}
		if src.Size > MaxFileBytes {
			return &types.MediaError{Message: fmt.Sprintf("file %q exceeds the 10 MB size limit", src.FileName)}
		}
		return nil
	case types.MediaSourceURL:
		if !validImageURL(src.URL) {
			return &types.MediaError{Message: fmt.Sprintf("%q is not a valid image URL", src.URL)}
		}
		return nil
	default:
		return &types.MediaError{Message: fmt.Sprintf("unknown media source kind %q", src.Kind)}
	}
}

func validImageURL(raw string) bool {
	if strings.HasPrefix(raw, "data:image/") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return imageURLRe.MatchString(raw)
}

// Remove drops the entry at position i and releases its preview file.
func (p *Pipeline) Remove(i int) error {
	if i < 0 || i >= len(p.entries) {
		return fmt.Errorf("media entry index %d out of range", i)
	}
	p.releaseEntry(&p.entries[i])
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	return nil
}

// Sources returns the accepted sources in insertion order. The first entry
// is the cover image by downstream convention.
func (p *Pipeline) Sources() []types.MediaSource {
	out := make([]types.MediaSource, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.source
	}
	return out
}

func (p *Pipeline) Count() int {
	return len(p.entries)
}

// Release deletes every remaining preview file. Safe to call once per
// session; subsequent calls are no-ops.
func (p *Pipeline) Release() {
	if p.released {
		return
	}
	p.released = true
	for i := range p.entries {
		p.releaseEntry(&p.entries[i])
	}
}

func (p *Pipeline) releaseEntry(e *entry) {
	if e.previewPath == "" {
		return
	}
	if err := os.Remove(e.previewPath); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("Failed to remove media preview", slog.String("path", e.previewPath), slog.Any("error", err))
	}
	e.previewPath = ""
}

// writePreview renders a thumbnail for a file-backed entry. Previews are a
// convenience for the admin UI; failures only skip the preview.
func (p *Pipeline) writePreview(src types.MediaSource) string {
	if p.previewDir == "" {
		return ""
	}
	img, err := imaging.Decode(bytes.NewReader(src.Data))
	if err != nil {
		p.logger.Debug("Skipping preview, payload not decodable", slog.String("file", src.FileName), slog.Any("error", err))
		return ""
	}
	if err := os.MkdirAll(p.previewDir, 0o755); err != nil {
		p.logger.Warn("Failed to create preview dir", slog.Any("error", err))
		return ""
	}
	thumb := imaging.Thumbnail(img, previewWidth, previewHeight, imaging.Lanczos)
	path := filepath.Join(p.previewDir, uuid.NewString()+".jpg")
	if err := imaging.Save(thumb, path); err != nil {
		p.logger.Warn("Failed to save media preview", slog.String("path", path), slog.Any("error", err))
		return ""
	}
	return path
}
