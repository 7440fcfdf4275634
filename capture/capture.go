// Package capture provides the image sources a meal entry starts from.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageSize is the largest image a source accepts.
const MaxImageSize = 20 << 20

// ErrNotImage reports content that is not a recognised image format.
var ErrNotImage = errors.New("not an image")

// MIMEType returns the media type sniffed from the content, like "image/jpeg".
func MIMEType(b []byte) string {
	m := mimetype.Detect(b)
	// parameters like charset are irrelevant for images.
	mediaType, _, _ := strings.Cut(m.String(), ";")
	return mediaType
}

// checkImage returns an error wrapping ErrNotImage unless b is an image.
func checkImage(b []byte) error {
	if t := MIMEType(b); !strings.HasPrefix(t, "image/") {
		return fmt.Errorf("%w: content is %s", ErrNotImage, t)
	}
	return nil
}

// ReaderSource acquires an image by reading a stream to its end.
//
// Reading happens in the background, so that Acquire returns as soon as its
// context is done; Close closes the stream, if it can be closed, which
// unblocks the pending read.
type ReaderSource struct {
	name string
	r    io.Reader

	once     sync.Once
	closeErr error
}

// NewReaderSource returns a source reading r. name is only used in errors.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, r: r}
}

// Stdin returns a source reading the standard input.
func Stdin() *ReaderSource { return NewReaderSource("stdin", os.Stdin) }

// Open returns a source for the file at path, or stdin for "-".
func Open(path string) (*ReaderSource, error) {
	if path == "-" {
		return Stdin(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("could not open image: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("could not open image: %q is a directory", path)
	}
	if info.Size() > MaxImageSize {
		f.Close()
		return nil, fmt.Errorf("image %q is too large: %d bytes, max %d", path, info.Size(), MaxImageSize)
	}
	return NewReaderSource(path, f), nil
}

func (s *ReaderSource) String() string { return s.name }

type readResult struct {
	b   []byte
	err error
}

// Acquire reads the whole stream and checks it holds an image.
func (s *ReaderSource) Acquire(ctx context.Context) ([]byte, error) {
	done := make(chan readResult, 1)
	go func() {
		b, err := io.ReadAll(io.LimitReader(s.r, MaxImageSize+1))
		done <- readResult{b, err}
	}()

	var res readResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("could not read image from %s: %w", s.name, res.err)
	}
	if len(res.b) > MaxImageSize {
		return nil, fmt.Errorf("image from %s is larger than %d bytes", s.name, MaxImageSize)
	}
	if len(res.b) == 0 {
		return nil, fmt.Errorf("image from %s is empty", s.name)
	}
	if err := checkImage(res.b); err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	return res.b, nil
}

// Close releases the stream. It is safe to call more than once.
func (s *ReaderSource) Close() error {
	s.once.Do(func() {
		if c, ok := s.r.(io.Closer); ok {
			s.closeErr = c.Close()
		}
	})
	return s.closeErr
}
