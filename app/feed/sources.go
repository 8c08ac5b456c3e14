package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-deck/app/database"
)

// Source is a subscription seed definition loaded from a YAML file.
type Source struct {
	URL             string `yaml:"url"`
	Title           string `yaml:"title"`
	SiteURL         string `yaml:"site_url"`
	IconURL         string `yaml:"icon_url"`
	RefreshInterval int    `yaml:"refresh_interval"` // minutes
}

type sourceFile struct {
	Subscriptions []Source `yaml:"subscriptions"`
}

// LoadSources reads all *.yml seed files from a directory. A missing
// directory is not an error; seeding is optional.
func LoadSources(dir string) ([]Source, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}

	var sources []Source
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		var sf sourceFile
		if err := yaml.Unmarshal(data, &sf); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}

		for _, s := range sf.Subscriptions {
			if s.URL == "" {
				slog.Warn("Skipping subscription without URL", "file", file)
				continue
			}
			if s.RefreshInterval <= 0 {
				s.RefreshInterval = 60
			}
			if s.IconURL == "" {
				s.IconURL = FaviconURL(s.SiteURL)
			}
			sources = append(sources, s)
		}
	}

	return sources, nil
}

// SeedSources upserts seed subscriptions into the feeds table.
func SeedSources(dir string, feedRepo database.FeedRepository) (int, error) {
	sources, err := LoadSources(dir)
	if err != nil {
		return 0, err
	}

	seeded := 0
	for _, s := range sources {
		id, err := feedRepo.UpsertFeed(s.URL, s.Title, s.SiteURL, s.IconURL, s.RefreshInterval)
		if err != nil {
			slog.Warn("Failed to seed subscription", "url", s.URL, "error", err)
			continue
		}
		slog.Debug("Seeded subscription", "id", id, "url", s.URL)
		seeded++
	}

	return seeded, nil
}

// FaviconURL derives a favicon address for a site via Google's favicon
// service.
func FaviconURL(siteURL string) string {
	if siteURL == "" {
		return ""
	}
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return "https://www.google.com/s2/favicons?domain=" + u.Host + "&sz=64"
}
