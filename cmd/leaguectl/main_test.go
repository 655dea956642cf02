package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApp_Commands(t *testing.T) {
	app := newApp()

	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"migrate", "recompute-daily", "close-week", "export"}, names)

	migrate := app.Command("migrate")
	require.NotNil(t, migrate)
	var subs []string
	for _, c := range migrate.Subcommands {
		subs = append(subs, c.Name)
	}
	assert.Equal(t, []string{"up", "down", "status"}, subs)
}

func TestResolveWeek(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Zagreb")
	require.NoError(t, err)
	sunday := time.Date(2024, 6, 16, 23, 59, 0, 0, loc)

	week, err := resolveWeek("", sunday, loc)
	require.NoError(t, err)
	assert.True(t, week.Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, loc)))

	week, err = resolveWeek("2024-06-05", sunday, loc)
	require.NoError(t, err)
	assert.True(t, week.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, loc)))

	_, err = resolveWeek("05.06.2024", sunday, loc)
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "liga-standings-2024-06-10.xlsx"), outputPath(dir, "2024-06-10"))

	file := filepath.Join(dir, "out.xlsx")
	assert.Equal(t, file, outputPath(file, "2024-06-10"))
}
