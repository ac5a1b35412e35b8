// Package gallery lists the files that finished downloading.
package gallery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/h2non/filetype"
)

// Kind is a coarse media classification from a file's magic bytes.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
	KindOther Kind = "other"
)

// Suffixes of files that are still being written by a fetcher.
var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}

type Item struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Kind    Kind      `json:"kind"`
}

// Lister reads the destination directory. It never touches job state.
type Lister struct {
	dir string
}

func NewLister(dir string) *Lister {
	return &Lister{dir: dir}
}

func (l *Lister) Dir() string {
	return l.dir
}

// List returns finished files, newest modification time first. A missing
// directory is an empty gallery.
func (l *Lister) List() ([]Item, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isVisible(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		items = append(items, Item{
			Name:    e.Name(),
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Kind:    detectKind(path),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ModTime.Equal(items[j].ModTime) {
			return items[i].Name < items[j].Name
		}
		return items[i].ModTime.After(items[j].ModTime)
	})
	return items, nil
}

// Count returns the number of finished files.
func (l *Lister) Count() (int, error) {
	items, err := l.List()
	return len(items), err
}

func isVisible(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return false
		}
	}
	return true
}

func detectKind(path string) Kind {
	kind, err := filetype.MatchFile(path)
	if err != nil || kind == filetype.Unknown {
		return KindOther
	}
	switch {
	case strings.HasPrefix(kind.MIME.Value, "video/"):
		return KindVideo
	case strings.HasPrefix(kind.MIME.Value, "audio/"):
		return KindAudio
	case strings.HasPrefix(kind.MIME.Value, "image/"):
		return KindImage
	}
	return KindOther
}
