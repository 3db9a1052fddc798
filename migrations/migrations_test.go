package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	up, err := Load(Up)
	require.NoError(t, err)
	require.NotEmpty(t, up)
	assert.Equal(t, "001_create_schema", up[0].Name)
	for _, table := range []string{"datasets", "observations", "resampled_points", "nexus_records"} {
		assert.Contains(t, up[0].SQL, "CREATE TABLE IF NOT EXISTS "+table)
	}

	down, err := Load(Down)
	require.NoError(t, err)
	require.Len(t, down, len(up))
	assert.True(t, strings.HasPrefix(down[0].SQL, "DROP TABLE IF EXISTS nexus_records"))

	_, err = Load("sideways")
	assert.Error(t, err)
}
