package view

import (
	"fmt"

	"github.com/pgviews/pgviews/internal/util"
)

// DefaultNamespace is the schema views are created in when none is configured
const DefaultNamespace = "views"

// DropNamespaceSQL drops the namespace and everything in it
func DropNamespaceSQL(namespace string) string {
	return fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", util.QuoteIdentifier(namespace))
}

// CreateNamespaceSQL creates the namespace
func CreateNamespaceSQL(namespace string) string {
	return fmt.Sprintf("CREATE SCHEMA %s", util.QuoteIdentifier(namespace))
}

// GrantUsageSQL grants usage on the namespace to a role
func GrantUsageSQL(namespace, grantee string) string {
	return fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s", util.QuoteIdentifier(namespace), util.QuoteRole(grantee))
}

// GrantSelectSQL grants read access on one view to a role
func GrantSelectSQL(namespace, name, grantee string) string {
	return fmt.Sprintf("GRANT SELECT ON %s TO %s", util.QualifiedName(namespace, name), util.QuoteRole(grantee))
}

// RefreshSQL refreshes a materialized view. CONCURRENTLY requires a unique
// index on the view.
func RefreshSQL(namespace, name string, concurrently bool) string {
	if concurrently {
		return fmt.Sprintf("REFRESH MATERIALIZED VIEW CONCURRENTLY %s", util.QualifiedName(namespace, name))
	}
	return fmt.Sprintf("REFRESH MATERIALIZED VIEW %s", util.QualifiedName(namespace, name))
}
