package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"marquee/internal/catalog"
)

type feedDocument struct {
	Source  string                     `json:"source" yaml:"source"`
	Venue   string                     `json:"venue" yaml:"venue"`
	Records []catalog.NormalizedRecord `json:"records" yaml:"records"`
}

// FileFeed returns a producer that reads a YAML or JSON feed document at path.
// Document-level source and venue values fill records that omit them.
func FileFeed(path string) Producer {
	return func(ctx context.Context) ([]catalog.NormalizedRecord, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return ReadFeed(path)
	}
}

// ReadFeed decodes a feed file, choosing JSON or YAML by extension.
func ReadFeed(path string) ([]catalog.NormalizedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", path, err)
	}
	var doc feedDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", path, err)
	}
	for i := range doc.Records {
		if doc.Records[i].Source == "" {
			doc.Records[i].Source = doc.Source
		}
		if doc.Records[i].VenueSlug == "" {
			doc.Records[i].VenueSlug = doc.Venue
		}
	}
	return doc.Records, nil
}

// FeedKey derives a registry key from a feed file name.
func FeedKey(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RegisterFeedDir registers every .yaml, .yml and .json file in dir under its
// FeedKey. A missing directory registers nothing.
func RegisterFeedDir(registry *Registry, dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read feed dir: %w", err)
	}
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		key := FeedKey(path)
		if err := registry.Register(key, FileFeed(path)); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
