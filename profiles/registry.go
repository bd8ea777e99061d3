// Package profiles resolves target domains to their source profiles.
package profiles

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/aluiziolira/go-scrape-coins/models"
)

// Store supplies domain profiles from a backing store.
type Store interface {
	Load(ctx context.Context) ([]models.SourceProfile, error)
}

type snapshot struct {
	byDomain map[string]models.SourceProfile
}

// Registry is a read-only lookup of source profiles. A new snapshot can be
// swapped in with Reload between scrapes; in-flight scrapes keep the profile
// value they already resolved.
type Registry struct {
	store   Store
	current atomic.Pointer[snapshot]
}

// NewRegistry returns a registry seeded with the builtin profiles. store may be nil.
func NewRegistry(store Store) *Registry {
	r := &Registry{store: store}
	snap, err := buildSnapshot(BuiltinProfiles())
	if err != nil {
		panic(fmt.Sprintf("profiles: builtin table invalid: %v", err))
	}
	r.current.Store(snap)
	return r
}

// Reload reads the store and replaces the current snapshot. Store profiles
// override builtin ones for the same domain. On error the previous snapshot
// is kept.
func (r *Registry) Reload(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	loaded, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	merged := append(BuiltinProfiles(), loaded...)
	snap, err := buildSnapshot(merged)
	if err != nil {
		return err
	}
	r.current.Store(snap)
	slog.Info("source profiles loaded",
		slog.Int("from_store", len(loaded)),
		slog.Int("total", len(snap.byDomain)),
	)
	return nil
}

// Len returns the number of known domains.
func (r *Registry) Len() int {
	return len(r.current.Load().byDomain)
}

// Resolve returns the profile for domain by exact or parent-domain match,
// falling back to DefaultProfile. It never fails.
func (r *Registry) Resolve(domain string) models.SourceProfile {
	host := NormalizeDomain(domain)
	snap := r.current.Load()
	for candidate := host; candidate != ""; candidate = parentDomain(candidate) {
		if p, ok := snap.byDomain[candidate]; ok {
			return p
		}
	}
	return DefaultProfile()
}

// NormalizeDomain lower-cases a host or URL and strips scheme, port,
// credentials, a leading "www." and a trailing dot.
func NormalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Hostname()
		}
	} else {
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
		if i := strings.LastIndex(s, "@"); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s[i+1:], "]") {
			s = s[:i]
		}
	}
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimPrefix(s, "www.")
	return s
}

func parentDomain(host string) string {
	i := strings.IndexByte(host, '.')
	if i < 0 {
		return ""
	}
	return host[i+1:]
}

func buildSnapshot(profiles []models.SourceProfile) (*snapshot, error) {
	byDomain := make(map[string]models.SourceProfile, len(profiles))
	for _, p := range profiles {
		if err := Validate(&p); err != nil {
			return nil, err
		}
		p.Domain = NormalizeDomain(p.Domain)
		byDomain[p.Domain] = p
	}
	return &snapshot{byDomain: byDomain}, nil
}

// Validate checks a profile loaded from a backing store.
func Validate(p *models.SourceProfile) error {
	if NormalizeDomain(p.Domain) == "" {
		return fmt.Errorf("profile domain cannot be empty")
	}
	if p.Category == "" {
		p.Category = models.CategoryUnknown
	}
	if !p.Category.Valid() {
		return fmt.Errorf("profile %s: unknown category %q", p.Domain, p.Category)
	}
	if p.MinRequestIntervalMs < 0 {
		return fmt.Errorf("profile %s: min request interval cannot be negative", p.Domain)
	}
	return nil
}
