// Package profile indexes a directory of ICC camera profiles and resolves the
// best match for a given brand, model, and scene. Profile bytes are loaded
// lazily through a bounded cache since a batch run touches few distinct
// profiles but may consult them thousands of times.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound indicates no profile in the catalog matched the request.
var ErrNotFound = errors.New("profile not found in catalog")

// DefaultScene is the scene assumed for profiles whose filename names only a
// brand and model, and the fallback scene during lenient resolution.
const DefaultScene = "standard"

// DefaultCacheSize bounds the number of profile payloads held in memory.
const DefaultCacheSize = 16

// Entry identifies a single profile file in the catalog.
type Entry struct {
	Brand string
	Model string
	Scene string
	Path  string
}

// Key returns the canonical identifier used for cache lookups.
func (e Entry) Key() string {
	return e.Brand + "/" + e.Model + "/" + e.Scene
}

// CacheStats reports profile cache effectiveness for the run summary.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// Catalog is an immutable index of profiles found in a directory, plus a
// mutable bounded byte cache. Safe for concurrent use.
type Catalog struct {
	entries map[string]Entry // keyed by lowercase brand/model/scene
	byBrand map[string][]Entry

	mu       sync.Mutex
	cache    map[string][]byte
	order    []string // cache keys, oldest first
	maxCache int
	stats    CacheStats

	logger *slog.Logger
}

// NewCatalog indexes every .icm and .icc file under dir. Filenames follow the
// convention "Brand_Model.icm" or "Brand_Model_Scene.icm"; files that do not
// parse are logged and skipped. A missing directory yields an empty catalog.
func NewCatalog(dir string, maxCache int, loggerHandler slog.Handler) (*Catalog, error) {
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})
	}
	logger := slog.New(loggerHandler).With(slog.String("component", "profileCatalog"))
	if maxCache <= 0 {
		maxCache = DefaultCacheSize
	}

	c := &Catalog{
		entries:  make(map[string]Entry),
		byBrand:  make(map[string][]Entry),
		cache:    make(map[string][]byte),
		maxCache: maxCache,
		logger:   logger,
	}

	if dir == "" {
		return c, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, os.ErrNotExist) {
				logger.Debug("Profile directory does not exist, catalog empty", slog.String("dir", dir))
				return filepath.SkipAll
			}
			logger.Warn("Error accessing profile path", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".icm" && ext != ".icc" {
			return nil
		}
		entry, ok := parseProfileName(path)
		if !ok {
			logger.Warn("Skipping profile with unparseable name", slog.String("path", path))
			return nil
		}
		c.add(entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan profile directory %s: %w", dir, err)
	}

	logger.Debug("Profile catalog indexed",
		slog.String("dir", dir),
		slog.Int("profiles", len(c.entries)),
		slog.Int("brands", len(c.byBrand)))
	return c, nil
}

func (c *Catalog) add(entry Entry) {
	key := strings.ToLower(entry.Key())
	if _, exists := c.entries[key]; exists {
		c.logger.Warn("Duplicate profile entry, keeping first",
			slog.String("key", entry.Key()), slog.String("path", entry.Path))
		return
	}
	c.entries[key] = entry
	brandKey := strings.ToLower(entry.Brand)
	c.byBrand[brandKey] = append(c.byBrand[brandKey], entry)
}

// parseProfileName derives brand, model, and scene from a profile filename.
// Underscores separate the fields; the scene defaults to DefaultScene when
// only two fields are present. Model names containing underscores are not
// representable, hyphens serve that purpose ("Nikon_D750.icm",
// "Sony_ILCE-7M3_landscape.icm").
func parseProfileName(path string) (Entry, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(stem, "_")
	switch len(parts) {
	case 2:
		return Entry{Brand: parts[0], Model: parts[1], Scene: DefaultScene, Path: path}, true
	case 3:
		return Entry{Brand: parts[0], Model: parts[1], Scene: strings.ToLower(parts[2]), Path: path}, true
	default:
		return Entry{}, false
	}
}

// Brands returns the sorted brand names present in the catalog.
func (c *Catalog) Brands() []string {
	seen := make(map[string]struct{})
	var brands []string
	for _, entries := range c.byBrand {
		for _, e := range entries {
			if _, ok := seen[e.Brand]; !ok {
				seen[e.Brand] = struct{}{}
				brands = append(brands, e.Brand)
			}
		}
	}
	sort.Strings(brands)
	return brands
}

// Models returns the sorted model names available for a brand.
func (c *Catalog) Models(brand string) []string {
	seen := make(map[string]struct{})
	var models []string
	for _, e := range c.byBrand[strings.ToLower(brand)] {
		if _, ok := seen[e.Model]; !ok {
			seen[e.Model] = struct{}{}
			models = append(models, e.Model)
		}
	}
	sort.Strings(models)
	return models
}

// Scenes returns the sorted scene names available for a brand and model.
func (c *Catalog) Scenes(brand, model string) []string {
	var scenes []string
	for _, e := range c.byBrand[strings.ToLower(brand)] {
		if strings.EqualFold(e.Model, model) {
			scenes = append(scenes, e.Scene)
		}
	}
	sort.Strings(scenes)
	return scenes
}

// Len returns the number of indexed profiles.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Resolve finds the best profile for a brand, model, and scene. With strict
// set, only an exact match succeeds. Otherwise resolution relaxes in order:
// exact scene, default scene, any scene for the model, then any profile for
// the brand. The boolean reports whether anything matched.
func (c *Catalog) Resolve(brand, model, scene string, strict bool) (Entry, bool) {
	if scene == "" {
		scene = DefaultScene
	}
	exactKey := strings.ToLower(brand + "/" + model + "/" + scene)
	if e, ok := c.entries[exactKey]; ok {
		return e, true
	}
	if strict {
		return Entry{}, false
	}

	defaultKey := strings.ToLower(brand + "/" + model + "/" + DefaultScene)
	if e, ok := c.entries[defaultKey]; ok {
		return e, true
	}

	brandEntries := c.byBrand[strings.ToLower(brand)]
	for _, e := range brandEntries {
		if strings.EqualFold(e.Model, model) {
			return e, true
		}
	}
	if len(brandEntries) > 0 {
		return brandEntries[0], true
	}
	return Entry{}, false
}

// Load returns the profile bytes for an entry, reading from disk on a cache
// miss. The oldest cached payload is evicted once the cache is full.
func (c *Catalog) Load(entry Entry) ([]byte, error) {
	key := strings.ToLower(entry.Key())

	c.mu.Lock()
	if data, ok := c.cache[key]; ok {
		c.stats.Hits++
		c.mu.Unlock()
		return data, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", entry.Path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache[key]; !ok {
		if len(c.cache) >= c.maxCache {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.cache, oldest)
			c.stats.Evictions++
		}
		c.cache[key] = data
		c.order = append(c.order, key)
	}
	return data, nil
}

// Stats returns a snapshot of cache effectiveness counters.
func (c *Catalog) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Entries = len(c.cache)
	return stats
}
