package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ManifestName is the file every export archive must contain.
const ManifestName = "conversations.json"

// ErrArchiveNotFound is returned when the archive path does not exist.
var ErrArchiveNotFound = errors.New("export archive not found")

// MissingManifestError reports an archive without a conversations manifest.
type MissingManifestError struct {
	Archive string
}

func (e *MissingManifestError) Error() string {
	return fmt.Sprintf("%s not found in archive %s", ManifestName, e.Archive)
}

// Manifest is the parsed content of an export.
type Manifest struct {
	Archive       string
	Conversations []Conversation
	// Malformed counts records that could not be decoded at all.
	Malformed int
}

// Recent returns up to n conversations with a create time, newest first.
func (m *Manifest) Recent(n int) []Conversation {
	var dated []Conversation
	for _, c := range m.Conversations {
		if c.CreateTime != nil {
			dated = append(dated, c)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return *dated[i].CreateTime > *dated[j].CreateTime
	})
	if len(dated) > n {
		dated = dated[:n]
	}
	return dated
}

// Reader loads export archives from a file system.
type Reader struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewReader constructs a Reader. A nil fs means the OS file system.
func NewReader(fs afero.Fs, logger *slog.Logger) *Reader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reader{fs: fs, logger: logger}
}

// Read opens the archive at archivePath and parses its manifest. A path
// ending in .json is read directly as an already extracted manifest, and a
// directory stands for the newest .zip archive inside it.
func (r *Reader) Read(ctx context.Context, archivePath string) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if info, err := r.fs.Stat(archivePath); err == nil && info.IsDir() {
		latest, err := r.LatestArchive(archivePath)
		if err != nil {
			return nil, err
		}
		r.logger.Info("using newest archive in directory", "dir", archivePath, "archive", latest)
		archivePath = latest
	}
	f, err := r.fs.Open(archivePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, archivePath)
		}
		return nil, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer f.Close()

	var data []byte
	if strings.EqualFold(path.Ext(archivePath), ".json") {
		data, err = io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", archivePath, err)
		}
	} else {
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat archive %s: %w", archivePath, err)
		}
		data, err = readManifestFromZip(f, info.Size(), archivePath)
		if err != nil {
			return nil, err
		}
	}

	manifest, err := r.parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	manifest.Archive = archivePath

	r.logger.Info("export loaded",
		"archive", archivePath,
		"conversations", len(manifest.Conversations),
		"malformed", manifest.Malformed)
	for i, c := range manifest.Recent(5) {
		r.logger.Debug("recent conversation", "rank", i+1, "title", c.TitleOrEmpty(), "create_time", *c.CreateTime)
	}
	return manifest, nil
}

// LatestArchive returns the most recently modified .zip file directly inside
// dir. Files with the same modification time resolve to the first by name.
func (r *Reader) LatestArchive(dir string) (string, error) {
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrArchiveNotFound, dir)
		}
		return "", fmt.Errorf("read archive dir %s: %w", dir, err)
	}
	var latest os.FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}
		if latest == nil || e.ModTime().After(latest.ModTime()) {
			latest = e
		}
	}
	if latest == nil {
		return "", fmt.Errorf("%w: no .zip archive in %s", ErrArchiveNotFound, dir)
	}
	return filepath.Join(dir, latest.Name()), nil
}

func readManifestFromZip(ra io.ReaderAt, size int64, archivePath string) ([]byte, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", archivePath, err)
	}
	var candidates []*zip.File
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		if path.Base(zf.Name) == ManifestName {
			candidates = append(candidates, zf)
		}
	}
	if len(candidates) == 0 {
		return nil, &MissingManifestError{Archive: archivePath}
	}
	// prefer the shallowest copy; exports put it at the root
	sort.SliceStable(candidates, func(i, j int) bool {
		return strings.Count(candidates[i].Name, "/") < strings.Count(candidates[j].Name, "/")
	})
	rc, err := candidates[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open %s in %s: %w", candidates[0].Name, archivePath, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s in %s: %w", candidates[0].Name, archivePath, err)
	}
	return data, nil
}

// parse accepts either a bare list of conversations or an object holding
// them under "conversations".
func (r *Reader) parse(data []byte) (*Manifest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty manifest")
	}

	var records []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
	case '{':
		var wrapped struct {
			Conversations []json.RawMessage `json:"conversations"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		records = wrapped.Conversations
	default:
		return nil, fmt.Errorf("unexpected manifest start %q", data[0])
	}

	m := &Manifest{Conversations: make([]Conversation, 0, len(records))}
	for i, raw := range records {
		var c Conversation
		if err := json.Unmarshal(raw, &c); err != nil {
			m.Malformed++
			r.logger.Warn("skipping malformed conversation record", "index", i, "error", err)
			continue
		}
		m.Conversations = append(m.Conversations, c)
	}
	return m, nil
}
