package seed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/seed"
	"github.com/skilllink/skilllink-api/internal/testutil"
)

func TestCategories(t *testing.T) {
	cats, err := seed.Categories()
	require.NoError(t, err)
	require.Len(t, cats, 9)
	assert.Equal(t, "Plumber", cats[0].Name)
	assert.NotEmpty(t, cats[0].Description)
}

func TestEnsureCategoriesIsIdempotent(t *testing.T) {
	gdb := testutil.NewDB(t) // seeds once

	n, err := seed.EnsureCategories(gdb)
	require.NoError(t, err)
	assert.Zero(t, n)

	var count int64
	require.NoError(t, gdb.Model(&models.Category{}).Count(&count).Error)
	assert.EqualValues(t, 9, count)
}

func TestResetCategories(t *testing.T) {
	gdb := testutil.NewDB(t)
	require.NoError(t, gdb.Create(&models.Category{Name: "Welder"}).Error)

	require.NoError(t, seed.ResetCategories(gdb))

	var names []string
	require.NoError(t, gdb.Model(&models.Category{}).Order("name").Pluck("name", &names).Error)
	assert.Len(t, names, 9)
	assert.NotContains(t, names, "Welder")
}
