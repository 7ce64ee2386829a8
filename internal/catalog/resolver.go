package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type District struct {
	Code int
	Name string
}

type Department struct {
	Code      int
	Name      string
	Districts []District
}

// Location is the resolved pair of authority codes for a client's free-text
// department/city. The Defaulted flags record that a fallback was applied.
type Location struct {
	DepartmentCode      int
	DepartmentName      string
	CityCode            int
	CityName            string
	DefaultedDepartment bool
	DefaultedCity       bool
}

// Loader supplies the geographic catalog. The shipped loader serves the
// embedded table; a remote authority catalog can be plugged in without
// touching the resolver.
type Loader interface {
	Load(ctx context.Context) ([]Department, error)
}

type StaticLoader struct{}

func (StaticLoader) Load(ctx context.Context) ([]Department, error) {
	return defaultDepartments, nil
}

type Resolver struct {
	loader            Loader
	ttl               time.Duration
	defaultDepartment int
	log               zerolog.Logger

	mu        sync.RWMutex
	cached    []Department
	expiresAt time.Time
	group     singleflight.Group
}

func NewResolver(loader Loader, ttl time.Duration, defaultDepartment int, log zerolog.Logger) *Resolver {
	if loader == nil {
		loader = StaticLoader{}
	}
	return &Resolver{
		loader:            loader,
		ttl:               ttl,
		defaultDepartment: defaultDepartment,
		log:               log.With().Str("component", "catalog").Logger(),
	}
}

// Resolve maps free-text department/city names to authority codes.
// Matching is case-insensitive, accent-folded and substring in both
// directions. An unmatched department falls back to the configured default
// jurisdiction; an unmatched city falls back to the department's primary
// district. Both fallbacks leave a compliance warning in the log.
func (r *Resolver) Resolve(ctx context.Context, department, city string) (Location, error) {
	departments, err := r.departments(ctx)
	if err != nil {
		return Location{}, err
	}

	loc := Location{}

	dept := matchDepartment(departments, department)
	if dept == nil {
		dept = findByCode(departments, r.defaultDepartment)
		if dept == nil && len(departments) > 0 {
			dept = &departments[0]
		}
		if dept == nil {
			return Location{}, ErrCatalogEmpty
		}
		loc.DefaultedDepartment = true
		r.log.Warn().
			Str("department", department).
			Int("fallback_code", dept.Code).
			Msg("department not found in catalog, using default jurisdiction")
	}
	loc.DepartmentCode = dept.Code
	loc.DepartmentName = dept.Name

	district := matchDistrict(dept.Districts, city)
	if district == nil {
		if len(dept.Districts) == 0 {
			return Location{}, ErrCatalogEmpty
		}
		district = &dept.Districts[0]
		loc.DefaultedCity = true
		r.log.Warn().
			Str("city", city).
			Str("department", dept.Name).
			Int("fallback_code", district.Code).
			Msg("city not found in catalog, using primary district")
	}
	loc.CityCode = district.Code
	loc.CityName = district.Name

	return loc, nil
}

func (r *Resolver) departments(ctx context.Context) ([]Department, error) {
	r.mu.RLock()
	if r.cached != nil && time.Now().Before(r.expiresAt) {
		cached := r.cached
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	// Single refresh even when many requests hit the expired cache at once.
	result, err, _ := r.group.Do("departments", func() (interface{}, error) {
		r.mu.RLock()
		if r.cached != nil && time.Now().Before(r.expiresAt) {
			cached := r.cached
			r.mu.RUnlock()
			return cached, nil
		}
		r.mu.RUnlock()

		loaded, err := r.loader.Load(ctx)
		if err != nil {
			r.mu.RLock()
			stale := r.cached
			r.mu.RUnlock()
			if stale != nil {
				r.log.Warn().Err(err).Msg("catalog refresh failed, serving stale data")
				return stale, nil
			}
			return nil, err
		}

		r.mu.Lock()
		r.cached = loaded
		r.expiresAt = time.Now().Add(r.ttl)
		r.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Department), nil
}

func matchDepartment(departments []Department, name string) *Department {
	needle := normalize(name)
	if needle == "" {
		return nil
	}
	for i := range departments {
		if bidirectionalContains(normalize(departments[i].Name), needle) {
			return &departments[i]
		}
	}
	return nil
}

func matchDistrict(districts []District, name string) *District {
	needle := normalize(name)
	if needle == "" {
		return nil
	}
	for i := range districts {
		if bidirectionalContains(normalize(districts[i].Name), needle) {
			return &districts[i]
		}
	}
	return nil
}

func findByCode(departments []Department, code int) *Department {
	for i := range departments {
		if departments[i].Code == code {
			return &departments[i]
		}
	}
	return nil
}

func bidirectionalContains(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

var accentFolding = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"ü", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u",
	"Ü", "u", "Ñ", "n",
)

func normalize(s string) string {
	return strings.ToLower(accentFolding.Replace(strings.TrimSpace(s)))
}
