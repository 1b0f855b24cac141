package frames

import (
	"bytes"
	"context"
	"image"
	_ "image/gif" // register decoders
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
)

// ImageFile is one frame image found on disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the number parsed from the file name.
	Frame int
}

// ListImageFiles finds all frame-<n>.{jpg,jpeg,png,gif,bmp} files in dir, sorted
// by frame number. Files with other extensions are ignored.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: Files in frame order.
//   - error: If the directory cannot be read or a name has no frame number.
func ListImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read frame directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		switch strings.ToLower(ext) {
		case ".jpg", ".jpeg", ".png", ".gif", ".bmp":
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "frame-"), ext))
			if err != nil {
				return nil, errors.Wrapf(err, "parse frame number from %s", entry.Name())
			}
			files = append(files, ImageFile{Path: filepath.Join(dir, entry.Name()), Frame: n})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Frame < files[j].Frame
	})
	return files, nil
}

// DirectorySource replays a directory of frame images as a camera.
type DirectorySource struct {
	files  []ImageFile
	loop   bool
	width  int
	height int

	mu     sync.Mutex
	next   int
	id     int
	closed bool
}

// NewDirectorySource lists dir and reads the resolution from the first
// image. Every image must share that resolution.
func NewDirectorySource(dir string, loop bool) (*DirectorySource, error) {
	files, err := ListImageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no frame images in %s", dir)
	}

	f, err := os.Open(files[0].Path)
	if err != nil {
		return nil, errors.Wrap(err, "open first frame")
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", files[0].Path)
	}

	return &DirectorySource{files: files, loop: loop, width: cfg.Width, height: cfg.Height}, nil
}

// Next decodes the next image. Frame IDs keep increasing across loops.
func (s *DirectorySource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Frame{}, errors.New("directory source closed")
	}
	if s.next >= len(s.files) {
		if !s.loop {
			s.mu.Unlock()
			return Frame{}, ErrEndOfStream
		}
		s.next = 0
	}
	file := s.files[s.next]
	s.next++
	s.id++
	id := s.id
	s.mu.Unlock()

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return Frame{}, errors.Wrapf(err, "read %s", file.Path)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, errors.Wrapf(err, "decode %s", file.Path)
	}
	if b := img.Bounds(); b.Dx() != s.width || b.Dy() != s.height {
		return Frame{}, errors.Wrapf(ErrInvalidFrame, "%s is %dx%d, source is %dx%d",
			file.Path, b.Dx(), b.Dy(), s.width, s.height)
	}

	frame := FromImage(id, img)
	frame.Timestamp = time.Now()
	return frame, nil
}

// Size is the resolution of the first image.
func (s *DirectorySource) Size() (int, int) {
	return s.width, s.height
}

// Len is the number of images per pass.
func (s *DirectorySource) Len() int {
	return len(s.files)
}

// Close stops the source.
func (s *DirectorySource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
