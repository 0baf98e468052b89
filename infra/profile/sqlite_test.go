package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crisismatch/core/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "profiles.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	p := model.ResponderProfile{
		ID:          "r1",
		Name:        "Ana",
		Role:        model.RoleSpecialist,
		Specialties: []model.Specialty{model.SpecialtySuicidePrevention},
		Languages:   []model.LanguageSkill{{Code: "es", Proficiency: model.ProficiencyNative, Primary: true}},
	}
	require.NoError(t, s.Upsert(ctx, p))
	p.Name = "Ana M."
	require.NoError(t, s.Upsert(ctx, p))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Ana M.", got.Name)
	assert.Equal(t, model.ProficiencyNative, got.Languages[0].Proficiency)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrResponderNotFound)
}

func TestRebindPostgres(t *testing.T) {
	s := &SQLStore{dialect: "postgres"}
	assert.Equal(t, "a = $1 AND b = $2", s.rebind("a = ? AND b = ?"))
	s.dialect = "sqlite"
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestLoadSeed(t *testing.T) {
	data := `responders:
  - id: r1
    name: Sam
    role: SUPERVISOR
    specialties: [SUICIDE_PREVENTION, TRAUMA]
    languages:
      - code: en
        proficiency: NATIVE
        primary: true
    max_concurrent_sessions: 2
    emergency_available: true
    location:
      timezone: America/New_York
      country: US
`
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	ps, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, model.RoleSupervisor, ps[0].Role)
	assert.Equal(t, model.ProficiencyNative, ps[0].Languages[0].Proficiency)
	assert.True(t, ps[0].EmergencyAvailable)

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, Seed(context.Background(), s, ps))
}

func TestLoadSeedMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("responders:\n  - name: x\n"), 0o644))
	_, err := LoadSeed(path)
	if err == nil {
		t.Fatal("expected error for missing id")
	}
}
