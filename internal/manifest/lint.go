package manifest

import (
	"fmt"

	"github.com/pgviews/pgviews/internal/sqlcheck"
	"github.com/pgviews/pgviews/internal/view"
)

// Finding is a lint warning about one view
type Finding struct {
	Database string
	View     view.Identity
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s/%s: %s", f.Database, f.View, f.Message)
}

// Lint compares each view's SQL with its declaration: the created relation
// must be namespace.name, and every managed view the body reads from must be
// declared in depends_on.
func (m *Manifest) Lint(namespace string) []Finding {
	var findings []Finding

	for _, database := range m.DatabaseAliases() {
		views := m.ViewsFor(database)
		byName := make(map[string]*view.View, len(views))
		for _, v := range views {
			byName[v.Name] = v
		}

		for _, v := range views {
			info, err := sqlcheck.Inspect(v.Create.SQL)
			if err != nil {
				findings = append(findings, Finding{database, v.ID, err.Error()})
				continue
			}

			if info.Target.Name != v.Name {
				findings = append(findings, Finding{database, v.ID,
					fmt.Sprintf("statement creates %s but the view is named %s", info.Target, v.Name)})
			}
			if info.Target.Schema != namespace {
				findings = append(findings, Finding{database, v.ID,
					fmt.Sprintf("statement creates %s outside namespace %s", info.Target, namespace)})
			}

			declared := make(map[view.Identity]bool, len(v.DependsOn))
			for _, dep := range v.DependsOn {
				declared[dep] = true
			}
			for _, ref := range info.ReferencesIn(namespace) {
				target, managed := byName[ref]
				if !managed || target == v || declared[target.ID] {
					continue
				}
				findings = append(findings, Finding{database, v.ID,
					fmt.Sprintf("reads from %s.%s without declaring a dependency on %s", namespace, ref, target.ID)})
			}
		}
	}

	return findings
}
