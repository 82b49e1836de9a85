package role

import "github.com/volatiletech/null/v8"

// ModifiedFromTemplate reports whether a role has diverged from the template
// it was created from. A custom role (no originating template) is modified by
// definition, as is a role whose template can no longer be resolved.
// Otherwise the role is modified when its alias was renamed away from the
// template's role name or its permission set no longer matches exactly.
func ModifiedFromTemplate(alias string, createdFrom null.String, permissionIDs []string, templates map[string]Template) bool {
	if !createdFrom.Valid {
		return true
	}
	tpl, ok := templates[createdFrom.String]
	if !ok {
		return true
	}
	if alias != tpl.RoleName {
		return true
	}
	return !samePermissionSet(permissionIDs, tpl.PermissionIDs)
}

// samePermissionSet compares two permission-id sets: same size, same members,
// order and duplicates ignored.
func samePermissionSet(a, b []string) bool {
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	other := make(map[string]struct{}, len(b))
	for _, id := range b {
		other[id] = struct{}{}
	}
	if len(seen) != len(other) {
		return false
	}
	for id := range seen {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}
