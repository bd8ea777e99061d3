package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aluiziolira/go-scrape-coins/models"
	"github.com/aluiziolira/go-scrape-coins/storage"
)

// StaticStore serves a fixed list of profiles.
type StaticStore []models.SourceProfile

// Load implements Store.
func (s StaticStore) Load(context.Context) ([]models.SourceProfile, error) {
	out := make([]models.SourceProfile, len(s))
	copy(out, s)
	return out, nil
}

// YAMLStore reads profiles from a YAML file of the form
//
//	profiles:
//	  - domain: example.com
//	    category: marketplace
//	    minRequestIntervalMs: 1000
type YAMLStore struct {
	Path string
}

type yamlFile struct {
	Profiles []models.SourceProfile `yaml:"profiles"`
}

// Load implements Store.
func (s YAMLStore) Load(context.Context) ([]models.SourceProfile, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", s.Path, err)
	}
	return file.Profiles, nil
}

const selectProfilesSQL = `SELECT domain, category, requires_rendering, has_anti_bot, field_hints, min_request_interval_ms
FROM source_profiles
WHERE enabled
ORDER BY domain`

// PostgresStore reads profiles from the source_profiles table.
type PostgresStore struct {
	db storage.DB
}

// NewPostgresStore wraps db.
func NewPostgresStore(db storage.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) ([]models.SourceProfile, error) {
	rows, err := s.db.Query(ctx, selectProfilesSQL)
	if err != nil {
		return nil, fmt.Errorf("query source profiles: %w", err)
	}
	defer rows.Close()

	var out []models.SourceProfile
	for rows.Next() {
		var (
			p        models.SourceProfile
			category string
			hints    []byte
		)
		if err := rows.Scan(&p.Domain, &category, &p.RequiresRendering, &p.HasAntiBot, &hints, &p.MinRequestIntervalMs); err != nil {
			return nil, fmt.Errorf("scan source profile: %w", err)
		}
		p.Category = models.Category(category)
		if len(hints) > 0 {
			if err := json.Unmarshal(hints, &p.FieldHints); err != nil {
				return nil, fmt.Errorf("decode field hints for %s: %w", p.Domain, err)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source profiles: %w", err)
	}
	return out, nil
}
