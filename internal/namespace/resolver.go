// Package namespace maps a query context to concrete vector-store search
// spaces and their base relevance weights.
package namespace

import "strings"

// Type partitions namespaces by ownership.
type Type string

const (
	// TypeEmployee is a per-employee namespace.
	TypeEmployee Type = "employee"

	// TypeOrganization is an organization-wide namespace.
	TypeOrganization Type = "organization"

	// TypePublic is the shared/public namespace.
	TypePublic Type = "public"
)

// Namespace is an opaque search-space identifier. It carries no lifecycle of
// its own and is derived deterministically from the query context.
type Namespace string

// Namespace identifier prefixes.
const (
	employeePrefix     = "emp_"
	organizationPrefix = "org_"

	// Public is the single shared namespace.
	Public Namespace = "public"
)

// Base relevance weights per namespace type. Personal data ranks above
// organization data, which ranks above the generic public corpus.
const (
	EmployeeBaseWeight     float32 = 1.5
	OrganizationBaseWeight float32 = 1.0
	PublicBaseWeight       float32 = 0.8
)

// Employee returns the namespace for an employee ID.
func Employee(employeeID string) Namespace {
	return Namespace(employeePrefix + employeeID)
}

// Organization returns the namespace for an organization ID.
func Organization(organizationID string) Namespace {
	return Namespace(organizationPrefix + organizationID)
}

// Type returns the ownership type of the namespace.
func (n Namespace) Type() Type {
	switch {
	case strings.HasPrefix(string(n), employeePrefix):
		return TypeEmployee
	case strings.HasPrefix(string(n), organizationPrefix):
		return TypeOrganization
	default:
		return TypePublic
	}
}

// Context is the logical scope a query runs in.
type Context struct {
	// EmployeeID selects the per-employee namespace when non-empty.
	EmployeeID string

	// OrganizationID selects the organization namespace when non-empty.
	OrganizationID string

	// CategoryID also selects the organization namespace; organization
	// documents are partitioned by category at ingestion time but share one
	// search space per organization.
	CategoryID string

	// IncludePublic controls whether the public namespace participates.
	// Nil means include.
	IncludePublic *bool
}

// Resolved is a namespace paired with its base relevance weight.
type Resolved struct {
	Namespace  Namespace
	Type       Type
	BaseWeight float32
}

// Resolve maps a context to its namespaces in priority order: employee,
// organization, public. Identical contexts always produce identical output;
// there are no error conditions. An empty context yields only the public
// entry, or nothing at all when public is excluded — callers treat an empty
// result as "search nothing".
func Resolve(ctx Context) []Resolved {
	out := make([]Resolved, 0, 3)

	if ctx.EmployeeID != "" {
		out = append(out, Resolved{
			Namespace:  Employee(ctx.EmployeeID),
			Type:       TypeEmployee,
			BaseWeight: EmployeeBaseWeight,
		})
	}

	if ctx.OrganizationID != "" || ctx.CategoryID != "" {
		orgID := ctx.OrganizationID
		if orgID == "" {
			orgID = ctx.CategoryID
		}
		out = append(out, Resolved{
			Namespace:  Organization(orgID),
			Type:       TypeOrganization,
			BaseWeight: OrganizationBaseWeight,
		})
	}

	if ctx.IncludePublic == nil || *ctx.IncludePublic {
		out = append(out, Resolved{
			Namespace:  Public,
			Type:       TypePublic,
			BaseWeight: PublicBaseWeight,
		})
	}

	return out
}
