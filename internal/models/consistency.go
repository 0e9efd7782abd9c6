package models

import "time"

// RelationshipClass names one owning relation the consistency validator
// checks for organization or term disagreement.
type RelationshipClass string

const (
	RelationGradeEnrollment    RelationshipClass = "grade_enrollment"
	RelationGradeTerm          RelationshipClass = "grade_term"
	RelationFeeAssignmentClass RelationshipClass = "fee_assignment_class"
	RelationFeeAssignmentTerm  RelationshipClass = "fee_assignment_term"
	RelationEnrollmentClass    RelationshipClass = "enrollment_class"
)

// ConsistencyFinding identifies one orphaned record: a scoped entity whose
// referenced relation disagrees on organization or term.
type ConsistencyFinding struct {
	Relationship RelationshipClass `db:"-" json:"relationship"`
	RecordID     string            `db:"record_id" json:"record_id"`
	RelatedID    string            `db:"related_id" json:"related_id"`
	RecordOrg    string            `db:"record_org" json:"record_org"`
	RelatedOrg   string            `db:"related_org" json:"related_org"`
	RecordTerm   string            `db:"record_term" json:"record_term,omitempty"`
	RelatedTerm  string            `db:"related_term" json:"related_term,omitempty"`
}

// ConsistencyReport groups findings by relationship class. The validator only
// reports; remediation stays a separate, operator-driven action.
type ConsistencyReport struct {
	GeneratedAt time.Time                                  `json:"generated_at"`
	Scanned     []RelationshipClass                        `json:"scanned"`
	Findings    map[RelationshipClass][]ConsistencyFinding `json:"findings"`
	Total       int                                        `json:"total"`
}
