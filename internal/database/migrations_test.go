package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMigrationFiles(t *testing.T) {
	files := fstest.MapFS{
		"002_add_index.up.sql":          {Data: []byte("CREATE INDEX x ON t (c);")},
		"002_add_index.down.sql":        {Data: []byte("DROP INDEX x;")},
		"001_initial_schema.up.sql":     {Data: []byte("CREATE TABLE t (c INT);")},
		"001_initial_schema.down.sql":   {Data: []byte("DROP TABLE t;")},
		"003_orphan_down_only.down.sql": {Data: []byte("SELECT 1;")},
		"README.md":                     {Data: []byte("ignored")},
		"embed.go":                      {Data: []byte("package migrations")},
	}

	m := NewMigrationExecutor(nil, files)
	migrations, err := m.readMigrationFiles()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, "001", migrations[0].Version)
	assert.Equal(t, "initial_schema", migrations[0].Name)
	assert.Equal(t, "initial schema", migrations[0].Title)
	assert.Equal(t, "DROP TABLE t;", migrations[0].DownSQL)
	assert.Equal(t, calculateChecksum("CREATE TABLE t (c INT);"), migrations[0].Checksum)

	assert.Equal(t, "002", migrations[1].Version)
	assert.Equal(t, "add index", migrations[1].Title)
}

func TestCalculateChecksumStable(t *testing.T) {
	a := calculateChecksum("SELECT 1;")
	assert.Len(t, a, 64)
	assert.Equal(t, a, calculateChecksum("SELECT 1;"))
	assert.NotEqual(t, a, calculateChecksum("SELECT 2;"))
}
