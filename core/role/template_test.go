package role

import (
	"testing"

	"github.com/volatiletech/null/v8"
)

func TestModifiedFromTemplate(t *testing.T) {
	templates := map[string]Template{
		"tpl-1": {ID: "tpl-1", TemplateSetName: "generic", RoleName: "Admin", PermissionIDs: []string{"p1", "p2", "p3"}},
	}

	tests := []struct {
		name    string
		alias   string
		from    null.String
		permIDs []string
		want    bool
	}{
		{name: "custom role", alias: "Moderator", from: null.String{}, permIDs: []string{"p1"}, want: true},
		{name: "unresolvable template", alias: "Admin", from: null.StringFrom("gone"), permIDs: []string{"p1", "p2", "p3"}, want: true},
		{name: "pristine", alias: "Admin", from: null.StringFrom("tpl-1"), permIDs: []string{"p1", "p2", "p3"}, want: false},
		{name: "pristine, order ignored", alias: "Admin", from: null.StringFrom("tpl-1"), permIDs: []string{"p3", "p1", "p2"}, want: false},
		{name: "renamed", alias: "Administrator", from: null.StringFrom("tpl-1"), permIDs: []string{"p1", "p2", "p3"}, want: true},
		{name: "permission removed", alias: "Admin", from: null.StringFrom("tpl-1"), permIDs: []string{"p1", "p2"}, want: true},
		{name: "permission added", alias: "Admin", from: null.StringFrom("tpl-1"), permIDs: []string{"p1", "p2", "p3", "p4"}, want: true},
		{name: "permission swapped", alias: "Admin", from: null.StringFrom("tpl-1"), permIDs: []string{"p1", "p2", "p4"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModifiedFromTemplate(tt.alias, tt.from, tt.permIDs, templates); got != tt.want {
				t.Errorf("ModifiedFromTemplate() = %v, want %v", got, tt.want)
			}
		})
	}
}
