package migrate

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	require.NoError(t, checkPairs(migrationsFS, "sql"))
}

func TestCheckPairs(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		wantErr bool
	}{
		{name: "paired", files: []string{"sql/1_a.up.sql", "sql/1_a.down.sql"}},
		{name: "missing down", files: []string{"sql/1_a.up.sql", "sql/1_a.down.sql", "sql/2_b.up.sql"}, wantErr: true},
		{name: "missing up", files: []string{"sql/1_a.down.sql"}, wantErr: true},
		{name: "empty", files: []string{"sql/README"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{}
			for _, f := range tt.files {
				fsys[f] = &fstest.MapFile{Data: []byte("SELECT 1;")}
			}
			err := checkPairs(fsys, "sql")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "up", Up.String())
	assert.Equal(t, "down", Down.String())
}
