package track

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racetune/internal/model"
)

func TestGenerateDeterministicAndValid(t *testing.T) {
	a, err := Generate(DefaultSegments, DefaultSeed)
	require.NoError(t, err)
	b, err := Generate(DefaultSegments, DefaultSeed)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	require.NoError(t, a.Validate())
	for _, seg := range a.Segments {
		if seg.Curvature < 0.25 {
			assert.True(t, seg.Length >= 60 && seg.Length < 140, "straight length %v", seg.Length)
		} else {
			assert.True(t, seg.Length >= 40 && seg.Length < 90, "bend length %v", seg.Length)
		}
	}

	c, err := Generate(DefaultSegments, DefaultSeed+1)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = Generate(0, 1)
	require.Error(t, err)
}

func TestLoadTrackFormats(t *testing.T) {
	dir := t.TempDir()

	listPath := filepath.Join(dir, "list.json")
	require.NoError(t, os.WriteFile(listPath, []byte(`[{"curvature":0.1,"length":100},{"curvature":0.8,"length":60}]`), 0o644))
	tr, err := Load(listPath)
	require.NoError(t, err)
	assert.Equal(t, model.NewTrack(model.Segment{Curvature: 0.1, Length: 100}, model.Segment{Curvature: 0.8, Length: 60}), tr)

	docPath := filepath.Join(dir, "doc.yaml")
	require.NoError(t, os.WriteFile(docPath, []byte("segments:\n  - curvature: 0.3\n    length: 80\n"), 0o644))
	tr, err = Load(docPath)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Len())

	emptyPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyPath, []byte("segments: []\n"), 0o644))
	_, err = Load(emptyPath)
	require.ErrorIs(t, err, model.ErrEmptyTrack)
}
