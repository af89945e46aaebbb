package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_AreEmbeddedAndAnnotated(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	require.Len(t, names, 2)

	for _, name := range names {
		b, err := fs.ReadFile(Migrations, name)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(b), "-- +goose Up"), name)
		assert.True(t, strings.Contains(string(b), "-- +goose Down"), name)
	}
}
