package direct

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"

	"github.com/saverx/saverx/internal/utils"
)

const (
	fallbackFilename = "download.bin"
	sniffLen         = 512
)

var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// DetermineFilename picks a local name for the response body. Sources in
// priority order: Content-Disposition, the filename/file query parameter,
// the URL path, the first entry of a ZIP archive, then download.bin.
// Names without an extension get one from the body's magic bytes.
// The returned reader replays the sniffed bytes ahead of the rest of the body.
func DetermineFilename(rawurl string, resp *http.Response) (string, io.Reader, error) {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return "", nil, err
	}

	candidate := nameFromHeaders(resp.Header)
	if candidate == "" {
		q := parsed.Query()
		candidate = q.Get("filename")
		if candidate == "" {
			candidate = q.Get("file")
		}
	}
	if candidate == "" {
		candidate = filepath.Base(parsed.Path)
	}
	filename := sanitizeFilename(candidate)

	header := make([]byte, sniffLen)
	n, rerr := io.ReadFull(resp.Body, header)
	if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
		return "", nil, fmt.Errorf("reading header: %w", rerr)
	}
	header = header[:n]
	body := io.MultiReader(bytes.NewReader(header), resp.Body)

	if candidate == "." {
		if inner := zipEntryName(header); inner != "" {
			filename = filepath.Base(inner)
		}
	}

	if filepath.Ext(filename) == "" {
		if kind, _ := filetype.Match(header); kind != filetype.Unknown && kind.Extension != "" {
			filename += "." + kind.Extension
		}
	}

	if filename == "" || filename == "." || filename == "/" {
		filename = fallbackFilename
	}
	utils.Debug("direct: filename for %s is %q", rawurl, filename)
	return filename, body, nil
}

func nameFromHeaders(h http.Header) string {
	if _, name, err := httpheader.ContentDisposition(h); err == nil {
		return name
	}
	return ""
}

// zipEntryName returns the name of the first local file header, if any.
func zipEntryName(header []byte) string {
	if len(header) < 30 || !bytes.HasPrefix(header, zipMagic) {
		return ""
	}
	nameLen := int(binary.LittleEndian.Uint16(header[26:28]))
	end := 30 + nameLen
	if end > len(header) {
		return ""
	}
	return string(header[30:end])
}

var unsafeChars = strings.NewReplacer(
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

func sanitizeFilename(name string) string {
	// Backslashes count as separators regardless of platform.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	switch name {
	case ".":
		return name
	case "/":
		return "_"
	}
	return unsafeChars.Replace(strings.TrimSpace(name))
}
