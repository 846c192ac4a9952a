//go:build windows

package snapshot

import (
	"os"
	"path/filepath"
)

// windowsPending writes next to the target and renames over it on success.
type windowsPending struct {
	*os.File
	path string
	done bool
}

func createPending(path string) (pendingFile, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, err
	}
	return &windowsPending{File: f, path: path}, nil
}

func (p *windowsPending) CloseAtomicallyReplace() error {
	if err := p.Sync(); err != nil {
		return err
	}
	if err := p.Close(); err != nil {
		return err
	}
	if err := os.Rename(p.Name(), p.path); err != nil {
		return err
	}
	p.done = true
	return nil
}

func (p *windowsPending) Cleanup() error {
	if p.done {
		return nil
	}
	_ = p.Close()
	return os.Remove(p.Name())
}
