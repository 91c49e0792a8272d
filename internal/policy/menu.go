package policy

import (
	"slices"

	"estate-dashboard/internal/model"
)

// Menu returns the navigation for role with the entry at current marked
// active. A parent whose sub-item matches is active and expanded.
// Roles missing from the table get the fallback role's menu.
func (t *Table) Menu(role model.Role, current string) []model.NavItem {
	if _, ok := t.Roles[role]; !ok {
		role = t.Fallback
	}
	var out []model.NavItem
	for _, e := range t.Entries {
		if !slices.Contains(e.Roles, role) {
			continue
		}
		out = append(out, e.build(current))
	}
	return out
}

func (e MenuEntry) build(current string) model.NavItem {
	item := model.NavItem{
		Name:   e.Name,
		Icon:   e.Icon,
		Path:   e.Path,
		Active: e.Path != "" && e.Path == current,
	}
	for _, sub := range e.Items {
		si := sub.build(current)
		if si.Active {
			item.Active = true
			item.Expanded = true
		}
		item.SubItems = append(item.SubItems, si)
	}
	return item
}
