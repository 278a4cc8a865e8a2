package roster

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolbus/internal/domain"
)

func TestMemoryRoster(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(
		domain.Student{ID: "1", FirstName: "Ana", LastName: "Kim", Active: true},
		domain.Student{ID: "2", FirstName: "Ben", LastName: "Okafor", Active: false},
	)

	s, ok, err := m.Student(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ana Kim", s.DisplayName())

	_, ok, err = m.Student(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	active, err := m.ActiveStudents(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "1", active[0].ID)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.csv")
	data := "id,first_name,last_name,grade,pickup_latitude,pickup_longitude,active\n" +
		"1,Ana,Kim,3,37.1,-122.2,true\n" +
		"2,Ben,Okafor,5,,,false\n" +
		",skipped,row,,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	students, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, students, 2)

	assert.Equal(t, "Ana Kim", students[0].DisplayName())
	require.NotNil(t, students[0].PickupLat)
	assert.Equal(t, 37.1, *students[0].PickupLat)
	assert.True(t, students[0].Active)

	assert.Nil(t, students[1].PickupLat)
	assert.False(t, students[1].Active)
}

func TestLoadCSVMissingIDColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,grade\nAna,3\n"), 0o644))

	_, err := LoadCSV(path)
	assert.Error(t, err)
}
