//go:build !windows

package snapshot

import (
	"os"

	"github.com/google/renameio/v2"
)

// atomicWriteFile replaces path in one rename so a concurrent reader sees
// either the previous snapshot or the new one.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
