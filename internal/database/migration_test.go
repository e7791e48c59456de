package database

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationFiles, "migrations")
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var versions []uint
	for {
		versions = append(versions, version)

		up, _, err := src.ReadUp(version)
		require.NoError(t, err, "up migration %d", version)
		body, err := io.ReadAll(up)
		up.Close()
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "CREATE TABLE"))

		down, _, err := src.ReadDown(version)
		require.NoError(t, err, "down migration %d", version)
		down.Close()

		version, err = src.Next(version)
		if err != nil {
			assert.ErrorIs(t, err, os.ErrNotExist)
			break
		}
	}

	assert.Equal(t, []uint{1, 2}, versions)
}
