package store

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/junsooki/simrec/internal/capture"
)

// FrameEncoder turns a raw frame into file bytes.
type FrameEncoder interface {
	Encode(img *image.RGBA) ([]byte, error)
	Ext() string
}

// Scratch writes individual frames into a directory for inspection. The
// directory is created on first write and never cleaned up.
type Scratch struct {
	dir string
	enc FrameEncoder

	once  sync.Once
	mkErr error
}

// NewScratch creates a scratch mirror rooted at dir.
func NewScratch(dir string, enc FrameEncoder) *Scratch {
	return &Scratch{dir: dir, enc: enc}
}

// Dir returns the scratch directory.
func (s *Scratch) Dir() string { return s.dir }

// Path returns the file path used for frame index i.
func (s *Scratch) Path(i int) string {
	return filepath.Join(s.dir, fmt.Sprintf("frame-%05d.%s", i, s.enc.Ext()))
}

// Write encodes f and writes it to its scratch path.
func (s *Scratch) Write(f capture.Frame) (string, error) {
	s.once.Do(func() {
		s.mkErr = os.MkdirAll(s.dir, 0755)
	})
	if s.mkErr != nil {
		return "", fmt.Errorf("create scratch dir: %w", s.mkErr)
	}

	data, err := s.enc.Encode(f.Image)
	if err != nil {
		return "", fmt.Errorf("encode frame %d: %w", f.Index, err)
	}
	path := s.Path(f.Index)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write frame %d: %w", f.Index, err)
	}
	return path, nil
}
