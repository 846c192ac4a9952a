//go:build !windows

package config

import "github.com/google/renameio/v2"

func atomicWrite(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0o600)
}
