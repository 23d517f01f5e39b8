// Package baseline stores approved reference screenshots per URL, versioned
// so a bad promotion can be rolled back.
package baseline

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Version is one stored baseline image for a URL.
type Version struct {
	VersionID string    `json:"version_id"`
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	// Path is the image filename relative to the store's data directory.
	Path string `json:"path"`
}

// Entry is the version history for one URL. Versions are newest first.
type Entry struct {
	URL             string    `json:"url"`
	Versions        []Version `json:"versions"`
	ActiveVersionID string    `json:"active_version_id"`
	ActiveImagePath string    `json:"active_image_path,omitempty"`
}

// Store is a filesystem-backed baseline store: PNG files in a data
// directory plus one JSON metadata file, guarded by a mutex.
type Store struct {
	dataDir      string
	metadataPath string
	mu           sync.Mutex
}

// NewStore creates the data directory and metadata file if missing.
func NewStore(dataDir, metadataPath string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create baseline dir: %w", err)
	}
	s := &Store{dataDir: dataDir, metadataPath: metadataPath}
	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		if err := s.save(map[string]*Entry{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() (map[string]*Entry, error) {
	data, err := os.ReadFile(s.metadataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Entry{}, nil
		}
		return nil, fmt.Errorf("read baseline metadata: %w", err)
	}
	entries := map[string]*Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse baseline metadata: %w", err)
	}
	return entries, nil
}

func (s *Store) save(entries map[string]*Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline metadata: %w", err)
	}
	if err := os.WriteFile(s.metadataPath, data, 0o644); err != nil {
		return fmt.Errorf("write baseline metadata: %w", err)
	}
	return nil
}

func urlKey(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Promote stores the image as a new baseline version for the URL and makes
// it active. If the image is byte-identical to the current active version,
// no new version is created and the returned version id is empty.
func (s *Store) Promote(url, jobID, imagePath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}

	key := urlKey(url)
	entry, ok := entries[key]
	if !ok {
		entry = &Entry{URL: url}
		entries[key] = entry
	}

	if active := entry.activeVersion(); active != nil {
		activePath := filepath.Join(s.dataDir, active.Path)
		if _, err := os.Stat(activePath); err == nil {
			newHash, err1 := fileHash(imagePath)
			oldHash, err2 := fileHash(activePath)
			if err1 == nil && err2 == nil && newHash == oldHash {
				return "", nil
			}
		}
	}

	versionID := fmt.Sprintf("v%d_%s", len(entry.Versions)+1, time.Now().UTC().Format("20060102150405"))
	destName := fmt.Sprintf("%s_%s.png", key, versionID)

	// Normalize whatever was uploaded into a PNG on disk.
	img, err := imaging.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("read baseline image: %w", err)
	}
	if err := imaging.Save(img, filepath.Join(s.dataDir, destName)); err != nil {
		return "", fmt.Errorf("store baseline image: %w", err)
	}

	version := Version{
		VersionID: versionID,
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
		Path:      destName,
	}
	entry.Versions = append([]Version{version}, entry.Versions...)
	entry.ActiveVersionID = versionID

	if err := s.save(entries); err != nil {
		return "", err
	}
	return versionID, nil
}

// Rollback points the URL's active baseline at an older stored version.
func (s *Store) Rollback(url, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	entry, ok := entries[urlKey(url)]
	if !ok {
		return fmt.Errorf("no baselines for %s", url)
	}
	for _, v := range entry.Versions {
		if v.VersionID == versionID {
			entry.ActiveVersionID = versionID
			return s.save(entries)
		}
	}
	return fmt.Errorf("unknown baseline version %s for %s", versionID, url)
}

// ActivePath returns the absolute path of the URL's active baseline image.
func (s *Store) ActivePath(url string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", false
	}
	entry, ok := entries[urlKey(url)]
	if !ok {
		return "", false
	}
	active := entry.activeVersion()
	if active == nil {
		return "", false
	}
	path := filepath.Join(s.dataDir, active.Path)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// History returns the version history for a URL.
func (s *Store) History(url string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, false
	}
	entry, ok := entries[urlKey(url)]
	return entry, ok
}

// List returns every URL's history, with the active image path filled in.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil
	}
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		e := *entry
		if active := entry.activeVersion(); active != nil {
			e.ActiveImagePath = active.Path
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Delete removes a URL's baselines, including the stored images.
func (s *Store) Delete(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	key := urlKey(url)
	entry, ok := entries[key]
	if !ok {
		return fmt.Errorf("no baselines for %s", url)
	}
	for _, v := range entry.Versions {
		os.Remove(filepath.Join(s.dataDir, v.Path))
	}
	delete(entries, key)
	return s.save(entries)
}

// ImagePath resolves a stored baseline filename to an absolute path,
// refusing anything that escapes the data directory.
func (s *Store) ImagePath(filename string) (string, bool) {
	cleaned := filepath.Base(filepath.Clean(filename))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", false
	}
	path := filepath.Join(s.dataDir, cleaned)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func (e *Entry) activeVersion() *Version {
	if e.ActiveVersionID == "" {
		return nil
	}
	for i := range e.Versions {
		if e.Versions[i].VersionID == e.ActiveVersionID {
			return &e.Versions[i]
		}
	}
	return nil
}
