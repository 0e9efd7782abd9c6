package models

// EntityType names the scoped entity kinds known to the access matrix and
// the scope guard.
type EntityType string

const (
	EntityOrganization EntityType = "organization"
	EntityTerm         EntityType = "term"
	EntityStudent      EntityType = "student"
	EntityStaff        EntityType = "staff"
	EntityClass        EntityType = "class"
	EntityEnrollment   EntityType = "enrollment"
	EntityGrade        EntityType = "grade"
	EntityFeeStructure EntityType = "fee_structure"
	EntityFeeAssign    EntityType = "fee_assignment"
	EntityFeePayment   EntityType = "fee_payment"
	EntityAnnouncement EntityType = "announcement"
	EntityDocument     EntityType = "document"
	EntityMessage      EntityType = "message"
)

// Action is a CRUD-style operation on a scoped entity.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// RequestContext is the resolved (organization, term, principal) triple for
// one request. It is created by the tenancy middleware, stored in the gin
// context of that request only, and discarded when the request ends. It must
// never be kept in a package-level variable or shared across requests.
type RequestContext struct {
	OrganizationID string
	TermID         string
	PrincipalID    string
	PersonID       string
	Role           UserRole
}

// RefKind identifies a foreign reference the scope guard can resolve to an
// owning organization.
type RefKind string

const (
	RefOrganization RefKind = "organization"
	RefTerm         RefKind = "term"
	RefStudent      RefKind = "student"
	RefClass        RefKind = "class"
	RefEnrollment   RefKind = "enrollment"
	RefFeeStructure RefKind = "fee_structure"
	RefFeeAssign    RefKind = "fee_assignment"
)

// Reference is a typed foreign key carried by a write payload. The scope
// guard resolves each one and rejects the write when any resolves outside
// the active organization.
type Reference struct {
	Kind RefKind
	ID   string
}
