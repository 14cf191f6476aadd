package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// FilesystemOutput is a MessageOutput that writes every message into its own file.
//
// Every attempt of a crawl uses a fresh client (and so restarts message ids), files
// are therefore prefixed with a sequence number owned by the output.
type FilesystemOutput struct {
	directory string
	seq       *uint64
}

// NewFilesystemOutput clears `dir` and returns an output writing into it.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	var seq uint64
	return FilesystemOutput{directory: dir, seq: &seq}, nil
}

func (o FilesystemOutput) Write(id string, contents string) error {
	n := atomic.AddUint64(o.seq, 1)
	name := fmt.Sprintf("%05d_%s.txt", n, id)
	return os.WriteFile(filepath.Join(o.directory, name), []byte(contents), 0600)
}
