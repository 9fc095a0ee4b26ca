package profiler

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"usbspeed/internal/errors"
)

// FileSource reads the topology document from a file on every query. It
// lets the monitor replay captured profiler output.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Query(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewQuerySource("query cancelled", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.NewQuerySource(fmt.Sprintf("read %s", s.path), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewQuerySource(fmt.Sprintf("%s is empty", s.path), nil)
	}
	return data, nil
}

func (s *FileSource) String() string {
	return s.path
}
