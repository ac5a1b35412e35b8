package direct

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// PartialSuffix marks files that are still being written.
const PartialSuffix = ".part"

// claimMu serializes final renames so two jobs finishing with the same
// name cannot overwrite each other.
var claimMu sync.Mutex

// uniqueFilePath returns path, or "name(N).ext" for the first N that is free.
// An existing "(N)" suffix is continued rather than nested.
func uniqueFilePath(path string) string {
	if !exists(path) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	name := strings.TrimSuffix(filepath.Base(path), ext)

	base, counter := name, 1
	if strings.HasSuffix(name, ")") {
		if open := strings.LastIndexByte(name, '('); open > 0 {
			if num, err := strconv.Atoi(name[open+1 : len(name)-1]); err == nil && num > 0 {
				base = name[:open]
				counter = num + 1
			}
		}
	}

	for i := 0; i < 1000; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s(%d)%s", base, counter+i, ext))
		if !exists(candidate) {
			return candidate
		}
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// claimFinalPath moves partial to a free name derived from want and returns it.
func claimFinalPath(partial, want string) (string, error) {
	claimMu.Lock()
	defer claimMu.Unlock()

	final := uniqueFilePath(want)
	if err := os.Rename(partial, final); err != nil {
		return "", err
	}
	return final, nil
}
