// Package checklist holds the ordering rules for per-task checklists.
// Every function is pure; persistence lives in the engine.
package checklist

import (
	"sort"

	"siteline/internal/domain"
)

// Materialize copies a template into fresh, uncompleted task items. Items
// follow the template order and are numbered densely from 0.
func Materialize(tpl domain.ChecklistTemplate, taskID string, newID func() string) []domain.ChecklistItem {
	src := make([]domain.ChecklistTemplateItem, len(tpl.Items))
	copy(src, tpl.Items)
	sort.SliceStable(src, func(i, j int) bool { return src[i].OrderIndex < src[j].OrderIndex })
	items := make([]domain.ChecklistItem, 0, len(src))
	for i, it := range src {
		items = append(items, domain.ChecklistItem{
			ID:              newID(),
			TaskID:          taskID,
			Description:     it.Description,
			IsPhotoRequired: it.IsPhotoRequired,
			Methodology:     copyString(it.Methodology),
			IsCompleted:     false,
			OrderIndex:      i,
		})
	}
	return items
}

// Sort orders items by OrderIndex, keeping the incoming order for ties.
func Sort(items []domain.ChecklistItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].OrderIndex < items[j].OrderIndex })
}

// Renumber sorts items and rewrites OrderIndex to 0..n-1. It returns the
// ids whose index changed.
func Renumber(items []domain.ChecklistItem) []string {
	Sort(items)
	var changed []string
	for i := range items {
		if items[i].OrderIndex != i {
			items[i].OrderIndex = i
			changed = append(changed, items[i].ID)
		}
	}
	return changed
}

// Move relocates the item at position from to position to and renumbers
// the list. Positions refer to the sorted order.
func Move(items []domain.ChecklistItem, from, to int) ([]domain.ChecklistItem, error) {
	n := len(items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, domain.Validation("move %d -> %d out of range for %d item(s)", from, to, n)
	}
	out := make([]domain.ChecklistItem, n)
	copy(out, items)
	Sort(out)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]domain.ChecklistItem{moved}, out[to:]...)...)
	for i := range out {
		out[i].OrderIndex = i
	}
	return out, nil
}

// Remove drops the item with id and renumbers the rest.
func Remove(items []domain.ChecklistItem, id string) ([]domain.ChecklistItem, bool) {
	out := make([]domain.ChecklistItem, 0, len(items))
	found := false
	for _, it := range items {
		if it.ID == id {
			found = true
			continue
		}
		out = append(out, it)
	}
	if !found {
		return items, false
	}
	Renumber(out)
	return out, true
}

// AppendIndex is the index an item gets when the caller does not choose one.
func AppendIndex(items []domain.ChecklistItem) int {
	next := 0
	for _, it := range items {
		if it.OrderIndex >= next {
			next = it.OrderIndex + 1
		}
	}
	return next
}

// Normalize returns template items sorted and densely numbered.
func Normalize(items []domain.ChecklistTemplateItem) []domain.ChecklistTemplateItem {
	out := make([]domain.ChecklistTemplateItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	for i := range out {
		out[i].OrderIndex = i
	}
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
