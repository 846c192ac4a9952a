package snapshot

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/fsutil"
)

// maxEntryBytes bounds a single archive entry on read.
const maxEntryBytes = 64 << 20

type archivedFile struct {
	Path string
	Data []byte
}

type archiveWriter struct {
	tw       *tar.Writer
	manifest *Manifest
	modTime  time.Time
}

// addJSON encodes v into the archive and records its checksum.
func (w *archiveWriter) addJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := w.write(name, data); err != nil {
		return err
	}
	hash := sha256.Sum256(data)
	w.manifest.Files = append(w.manifest.Files, FileEntry{
		Path:   name,
		SHA256: hex.EncodeToString(hash[:]),
		Size:   int64(len(data)),
	})
	return nil
}

func (w *archiveWriter) write(name string, data []byte) error {
	header := &tar.Header{
		Name:     name,
		Mode:     0o600,
		Size:     int64(len(data)),
		ModTime:  w.modTime,
		Typeflag: tar.TypeReg,
	}
	if err := w.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("writing archive entry %s: %w", name, err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return fmt.Errorf("writing archive entry %s: %w", name, err)
	}
	return nil
}

func dayArchivePath(day, file string) string {
	return path.Join(daysArchiveRoot, day, file)
}

// cleanArchivePath rejects absolute and escaping entry names.
func cleanArchivePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty archive path")
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return "", fmt.Errorf("invalid archive path: %s", p)
	}
	clean := path.Clean(strings.TrimPrefix(p, "./"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path traversal detected: %s", p)
	}
	return clean, nil
}

// Validate verifies archive structure and file checksums and returns the
// manifest.
func Validate(inputPath string) (*Manifest, error) {
	manifest, _, err := loadArchive(inputPath)
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func loadArchive(inputPath string) (*Manifest, map[string]archivedFile, error) {
	if inputPath == "" {
		return nil, nil, fmt.Errorf("input path is required")
	}
	files, err := readArchiveFiles(inputPath)
	if err != nil {
		return nil, nil, err
	}

	mf, ok := files[manifestArchivePath]
	if !ok {
		return nil, nil, fmt.Errorf("snapshot is missing %s", manifestArchivePath)
	}
	var manifest Manifest
	if err := json.Unmarshal(mf.Data, &manifest); err != nil {
		return nil, nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if manifest.Version != FormatVersion {
		return nil, nil, fmt.Errorf("unsupported snapshot version %d", manifest.Version)
	}
	if err := validateAgainstManifest(&manifest, files); err != nil {
		return nil, nil, err
	}
	return &manifest, files, nil
}

func readArchiveFiles(inputPath string) (map[string]archivedFile, error) {
	f, err := fsutil.OpenScoped(inputPath)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	files := make(map[string]archivedFile)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar entry: %w", err)
		}
		switch header.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeReg:
		default:
			return nil, fmt.Errorf("unsupported tar entry type %d for %s", header.Typeflag, header.Name)
		}

		name, err := cleanArchivePath(header.Name)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxEntryBytes+1))
		if err != nil {
			return nil, fmt.Errorf("reading tar entry %s: %w", name, err)
		}
		if len(data) > maxEntryBytes {
			return nil, fmt.Errorf("archive entry %s is too large", name)
		}
		files[name] = archivedFile{Path: name, Data: data}
	}
	return files, nil
}

func validateAgainstManifest(manifest *Manifest, files map[string]archivedFile) error {
	for _, entry := range manifest.Files {
		f, ok := files[entry.Path]
		if !ok {
			return fmt.Errorf("manifest entry not found in archive: %s", entry.Path)
		}
		if int64(len(f.Data)) != entry.Size {
			return fmt.Errorf("size mismatch for %s: manifest=%d archive=%d", entry.Path, entry.Size, len(f.Data))
		}
		hash := sha256.Sum256(f.Data)
		if hex.EncodeToString(hash[:]) != entry.SHA256 {
			return fmt.Errorf("checksum mismatch for %s", entry.Path)
		}
	}
	for _, day := range manifest.Days {
		if _, ok := files[dayArchivePath(day, tasksFileName)]; !ok {
			return fmt.Errorf("snapshot is missing tasks for %s", day)
		}
	}
	if manifest.ProfilePresent {
		if _, ok := files[profileArchivePath]; !ok {
			return fmt.Errorf("snapshot is missing required entry: %s", profileArchivePath)
		}
	}
	return nil
}

func sortFileEntries(entries []FileEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}
