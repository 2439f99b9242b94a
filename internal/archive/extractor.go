package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of one extraction. A skipped result is not an
// error: it means the payload carried nothing deliverable (an HTML error
// page, an unrecognized binary, or a corrupt archive).
type Result struct {
	// Paths are the extracted files, in archive order for containers.
	Paths []string
	// Dir is the scratch directory holding Paths. The caller owns
	// cleanup: files must survive until after relay.
	Dir string
	// Skipped is true when nothing deliverable was produced.
	Skipped bool
	// Reason explains a skip for the operator log.
	Reason string
}

// kind is the sniffed payload type
type kind int

const (
	kindUnknown kind = iota
	kindHTML
	kindPDF
	kind7z
	kindZIP
)

// signatures is the ordered sniff table. HTML is checked first because an
// error page would otherwise be misdetected as a generic binary; the
// provider's declared content type is only consulted as a zip hint.
var signatures = []struct {
	prefix []byte
	kind   kind
}{
	{[]byte("%PDF"), kindPDF},
	{[]byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, kind7z},
	{[]byte("PK\x03\x04"), kindZIP},
}

// Extractor writes sniffed payloads into per-event scratch directories
type Extractor struct {
	scratchRoot string
}

// NewExtractor creates an extractor rooted at dir, defaulting to the
// system temp directory.
func NewExtractor(dir string) *Extractor {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "fin-report-bot")
	}
	return &Extractor{scratchRoot: dir}
}

// Extract sniffs the real type of raw from its content and materializes
// the deliverable file(s) in a scratch directory named after baseName.
// contentType is the provider-declared type, trusted only as a zip hint.
func (e *Extractor) Extract(raw []byte, contentType, baseName string) Result {
	if len(raw) == 0 {
		return skipped("empty payload")
	}

	if isHTML(raw) {
		// The provider serves an HTML page when a document has been
		// withdrawn or is not yet available.
		return skipped("payload is an html page, document withdrawn or unavailable")
	}

	k := sniff(raw)
	if k == kindUnknown && strings.Contains(strings.ToLower(contentType), "zip") {
		k = kindZIP
	}
	if k == kindUnknown {
		logrus.Warnf("Unrecognized payload for %s (content-type %q, leading bytes % x)",
			baseName, contentType, raw[:min(len(raw), 8)])
		return skipped("unrecognized binary payload")
	}

	dir := filepath.Join(e.scratchRoot, baseName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.Warnf("Failed to create scratch directory %s: %v", dir, err)
		return skipped("scratch directory unavailable")
	}

	switch k {
	case kindPDF:
		path := filepath.Join(dir, baseName+".pdf")
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			logrus.Warnf("Failed to write pdf %s: %v", path, err)
			return skippedIn(dir, "local write failed")
		}
		return Result{Paths: []string{path}, Dir: dir}

	case kind7z:
		paths, err := extract7z(raw, dir)
		if err != nil {
			logrus.Warnf("Failed to extract 7z archive into %s: %v", dir, err)
			return skippedIn(dir, "corrupt or unreadable 7z archive")
		}
		return containerResult(paths, dir)

	default:
		paths, err := extractZip(raw, dir)
		if err != nil {
			logrus.Warnf("Failed to extract zip archive into %s: %v", dir, err)
			return skippedIn(dir, "corrupt or unreadable zip archive")
		}
		return containerResult(paths, dir)
	}
}

func skipped(reason string) Result {
	return Result{Skipped: true, Reason: reason}
}

// skippedIn reports a skip that already created a scratch directory,
// so the caller still cleans it up.
func skippedIn(dir, reason string) Result {
	return Result{Skipped: true, Reason: reason, Dir: dir}
}

func containerResult(paths []string, dir string) Result {
	if len(paths) == 0 {
		return skippedIn(dir, "archive contains no files")
	}
	return Result{Paths: paths, Dir: dir}
}

func sniff(raw []byte) kind {
	for _, sig := range signatures {
		if bytes.HasPrefix(raw, sig.prefix) {
			return sig.kind
		}
	}
	return kindUnknown
}

// isHTML reports whether the payload starts with an HTML doctype or tag
// marker, ignoring leading whitespace and letter case.
func isHTML(raw []byte) bool {
	head := bytes.TrimLeft(raw[:min(len(raw), 256)], " \t\r\n")
	lower := bytes.ToLower(head)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) ||
		bytes.HasPrefix(lower, []byte("<html"))
}

func extractZip(raw []byte, dir string) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	// ErrInsecurePath still yields a usable reader; member names are
	// flattened to their base name below anyway.

	var paths []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path, err := writeMember(dir, f.Name, func() (io.ReadCloser, error) { return f.Open() })
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func extract7z(raw []byte, dir string) ([]string, error) {
	sr, err := sevenzip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open 7z: %w", err)
	}

	var paths []string
	for _, f := range sr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path, err := writeMember(dir, f.Name, func() (io.ReadCloser, error) { return f.Open() })
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// writeMember flattens an archive member into dir, guarding against
// path traversal in member names.
func writeMember(dir, name string, open func() (io.ReadCloser, error)) (string, error) {
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("unusable member name %q", name)
	}
	path := filepath.Join(dir, base)

	rc, err := open()
	if err != nil {
		return "", fmt.Errorf("open member %q: %w", name, err)
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
