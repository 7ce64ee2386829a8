package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *Resolver {
	return NewResolver(StaticLoader{}, time.Hour, 1, zerolog.Nop())
}

func TestResolveExactNames(t *testing.T) {
	resolver := newTestResolver()

	loc, err := resolver.Resolve(context.Background(), "Central", "San Lorenzo")
	require.NoError(t, err)

	assert.Equal(t, 11, loc.DepartmentCode)
	assert.Equal(t, 204, loc.CityCode)
	assert.False(t, loc.DefaultedDepartment)
	assert.False(t, loc.DefaultedCity)
}

func TestResolveIgnoresCaseAndAccents(t *testing.T) {
	resolver := newTestResolver()

	loc, err := resolver.Resolve(context.Background(), "capital", "ASUNCION")
	require.NoError(t, err)
	assert.Equal(t, 1, loc.DepartmentCode)
	assert.Equal(t, 1, loc.CityCode)
	assert.False(t, loc.DefaultedCity)

	loc, err = resolver.Resolve(context.Background(), "ñeembucu", "pilar")
	require.NoError(t, err)
	assert.Equal(t, 12, loc.DepartmentCode)
	assert.Equal(t, 213, loc.CityCode)
}

func TestResolveMatchesSubstringsBothWays(t *testing.T) {
	resolver := newTestResolver()

	// Catalog name contained in the input.
	loc, err := resolver.Resolve(context.Background(), "Departamento Central", "Ciudad de Luque")
	require.NoError(t, err)
	assert.Equal(t, 11, loc.DepartmentCode)
	assert.Equal(t, 200, loc.CityCode)

	// Input contained in the catalog name.
	loc, err = resolver.Resolve(context.Background(), "Alto Parana", "Franco")
	require.NoError(t, err)
	assert.Equal(t, 10, loc.DepartmentCode)
	assert.Equal(t, 184, loc.CityCode)
}

func TestResolveUnknownDepartmentFallsBackToDefault(t *testing.T) {
	resolver := newTestResolver()

	loc, err := resolver.Resolve(context.Background(), "Atlántida", "ciudad perdida")
	require.NoError(t, err)

	assert.True(t, loc.DefaultedDepartment)
	assert.Equal(t, 1, loc.DepartmentCode)
	assert.True(t, loc.DefaultedCity)
	assert.Equal(t, 1, loc.CityCode, "primary district of the default jurisdiction")
}

func TestResolveUnknownCityFallsBackToPrimaryDistrict(t *testing.T) {
	resolver := newTestResolver()

	loc, err := resolver.Resolve(context.Background(), "Itapúa", "Villa Inexistente")
	require.NoError(t, err)

	assert.False(t, loc.DefaultedDepartment)
	assert.Equal(t, 7, loc.DepartmentCode)
	assert.True(t, loc.DefaultedCity)
	assert.Equal(t, 114, loc.CityCode)
	assert.Equal(t, "Encarnación", loc.CityName)
}

func TestResolveEmptyInputsDefaultEverything(t *testing.T) {
	resolver := newTestResolver()

	loc, err := resolver.Resolve(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, loc.DefaultedDepartment)
	assert.True(t, loc.DefaultedCity)
	assert.Equal(t, 1, loc.DepartmentCode)
}

type countingLoader struct {
	calls int
	err   error
}

func (l *countingLoader) Load(ctx context.Context) ([]Department, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return []Department{
		{Code: 11, Name: "Central", Districts: []District{{Code: 200, Name: "Luque"}}},
	}, nil
}

func TestResolveCachesCatalogWithinTTL(t *testing.T) {
	loader := &countingLoader{}
	resolver := NewResolver(loader, time.Hour, 11, zerolog.Nop())

	for i := 0; i < 5; i++ {
		_, err := resolver.Resolve(context.Background(), "Central", "Luque")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, loader.calls)
}

func TestResolveServesStaleCatalogOnRefreshFailure(t *testing.T) {
	loader := &countingLoader{}
	resolver := NewResolver(loader, -time.Second, 11, zerolog.Nop())

	loc, err := resolver.Resolve(context.Background(), "Central", "Luque")
	require.NoError(t, err)
	assert.Equal(t, 200, loc.CityCode)

	loader.err = errors.New("authority endpoint down")
	loc, err = resolver.Resolve(context.Background(), "Central", "Luque")
	require.NoError(t, err)
	assert.Equal(t, 200, loc.CityCode)
}

func TestResolveFailsWhenCatalogNeverLoaded(t *testing.T) {
	loader := &countingLoader{err: errors.New("authority endpoint down")}
	resolver := NewResolver(loader, time.Hour, 11, zerolog.Nop())

	_, err := resolver.Resolve(context.Background(), "Central", "Luque")
	require.Error(t, err)
}
