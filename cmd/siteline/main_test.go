package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteline/internal/scheduler"
)

func TestParsePairs(t *testing.T) {
	pairs, err := parsePairs("photo", []string{"item-1=tasks/t1/a.jpg", "item-2=b=c"})
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"item-1", "tasks/t1/a.jpg"}, {"item-2", "b=c"}}, pairs)

	_, err = parsePairs("photo", []string{"missing-ref="})
	assert.Error(t, err)
	_, err = parsePairs("upload", []string{"noequals"})
	assert.Error(t, err)
}

func TestPlacementFlags(t *testing.T) {
	parse := func(args ...string) (scheduler.Placement, error) {
		var p placementFlags
		cmd := &cobra.Command{Use: "x"}
		p.bind(cmd)
		require.NoError(t, cmd.ParseFlags(args))
		return p.placement(cmd)
	}
	p, err := parse()
	require.NoError(t, err)
	assert.Equal(t, scheduler.PlaceEnd, p.Mode)

	p, err = parse("--index", "0")
	require.NoError(t, err)
	assert.Equal(t, scheduler.Placement{Mode: scheduler.PlaceIndex, Index: 0}, p)

	p, err = parse("--after", "t1")
	require.NoError(t, err)
	assert.Equal(t, scheduler.Placement{Mode: scheduler.PlaceAfter, AfterTaskID: "t1"}, p)

	_, err = parse("--start", "--after", "t1")
	assert.Error(t, err)
}

func TestReadChecklistTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiling.yml")
	require.NoError(t, os.WriteFile(path, []byte(`name: Tiling
items:
  - description: Surface primed
    order_index: 0
  - description: Tiles laid
    is_photo_required: true
    methodology: Check level every row
    order_index: 1
`), 0o644))
	in, err := readChecklistTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "Tiling", in.Name)
	require.Len(t, in.Items, 2)
	assert.True(t, in.Items[1].IsPhotoRequired)
	require.NotNil(t, in.Items[1].Methodology)
	assert.Equal(t, "Check level every row", *in.Items[1].Methodology)
}
