//go:build !windows

package snapshot

import "github.com/google/renameio/v2"

func createPending(path string) (pendingFile, error) {
	return renameio.TempFile("", path)
}
