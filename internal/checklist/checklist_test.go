package checklist

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteline/internal/domain"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("item-%d", n)
	}
}

func strPtr(s string) *string { return &s }

func TestMaterializeRoundTrip(t *testing.T) {
	tpl := domain.ChecklistTemplate{
		ID:   "tpl-1",
		Name: "Tiling",
		Items: []domain.ChecklistTemplateItem{
			{Description: "Grout joints", IsPhotoRequired: true, OrderIndex: 2},
			{Description: "Level surface", Methodology: strPtr("use 2m straightedge"), OrderIndex: 0},
			{Description: "Clean tiles", OrderIndex: 1},
		},
	}
	items := Materialize(tpl, "task-1", seqIDs())
	require.Len(t, items, 3)
	want := []struct {
		desc  string
		photo bool
		meth  *string
	}{
		{"Level surface", false, strPtr("use 2m straightedge")},
		{"Clean tiles", false, nil},
		{"Grout joints", true, nil},
	}
	for i, it := range items {
		assert.Equal(t, i, it.OrderIndex)
		assert.Equal(t, "task-1", it.TaskID)
		assert.False(t, it.IsCompleted)
		assert.Equal(t, want[i].desc, it.Description)
		assert.Equal(t, want[i].photo, it.IsPhotoRequired)
		assert.Equal(t, want[i].meth, it.Methodology)
	}
	// template methodology must not alias the item copy
	*items[0].Methodology = "changed"
	assert.Equal(t, "use 2m straightedge", *tpl.Items[1].Methodology)
}

func itemsWithOrder(ids ...string) []domain.ChecklistItem {
	out := make([]domain.ChecklistItem, len(ids))
	for i, id := range ids {
		out[i] = domain.ChecklistItem{ID: id, OrderIndex: i}
	}
	return out
}

func order(items []domain.ChecklistItem) []string {
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func TestMove(t *testing.T) {
	cases := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"adjacent swap", 0, 1, []string{"b", "a", "c", "d"}},
		{"to end", 0, 3, []string{"b", "c", "d", "a"}},
		{"to start", 3, 0, []string{"d", "a", "b", "c"}},
		{"noop", 2, 2, []string{"a", "b", "c", "d"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Move(itemsWithOrder("a", "b", "c", "d"), tc.from, tc.to)
			require.NoError(t, err)
			assert.Equal(t, tc.want, order(out))
			for i, it := range out {
				assert.Equal(t, i, it.OrderIndex)
			}
		})
	}
}

func TestMoveOutOfRange(t *testing.T) {
	_, err := Move(itemsWithOrder("a", "b"), 0, 2)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
	_, err = Move(itemsWithOrder("a", "b"), -1, 0)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestRemoveRenumbers(t *testing.T) {
	out, ok := Remove(itemsWithOrder("a", "b", "c"), "b")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "c"}, order(out))
	assert.Equal(t, 1, out[1].OrderIndex)

	_, ok = Remove(itemsWithOrder("a"), "zzz")
	assert.False(t, ok)
}

func TestRenumberAfterSparseInsert(t *testing.T) {
	items := []domain.ChecklistItem{
		{ID: "a", OrderIndex: 0},
		{ID: "b", OrderIndex: 1},
		{ID: "new", OrderIndex: 1},
		{ID: "c", OrderIndex: 5},
	}
	changed := Renumber(items)
	assert.Equal(t, []string{"a", "b", "new", "c"}, order(items))
	assert.ElementsMatch(t, []string{"new", "c"}, changed)
	assert.Equal(t, 6, AppendIndex([]domain.ChecklistItem{{OrderIndex: 5}, {OrderIndex: 2}}))
	assert.Equal(t, 0, AppendIndex(nil))
}
