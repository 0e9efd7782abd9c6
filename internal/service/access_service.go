package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
)

type teachingRelationReader interface {
	TeachesClass(ctx context.Context, orgID, termID, teacherUserID, classID string) (bool, error)
	TeachesStudent(ctx context.Context, orgID, termID, teacherUserID, studentID string) (bool, error)
}

type wardReader interface {
	ListWardIDs(ctx context.Context, orgID, guardianUserID string) ([]string, error)
}

// AccessRequest describes one authorization question: may this principal
// perform this action on this entity type, optionally against a concrete
// target. Target ids enable relationship narrowing. For list reads the
// targets are mandatory for relationship-bound roles: a list request that
// names no student or class is denied rather than allowed to sweep the
// organization. TargetStudentIDs carries a pinned list scope (a student's own
// id, a guardian's wards) when one filter value is not enough.
type AccessRequest struct {
	Entity           models.EntityType
	Action           models.Action
	TargetStudentID  string
	TargetClassID    string
	TargetStudentIDs []string
}

func (req AccessRequest) studentTargets() []string {
	if len(req.TargetStudentIDs) > 0 {
		return req.TargetStudentIDs
	}
	if req.TargetStudentID != "" {
		return []string{req.TargetStudentID}
	}
	return nil
}

type actionSet map[models.Action]bool

func allActions() actionSet {
	return actionSet{
		models.ActionCreate: true,
		models.ActionRead:   true,
		models.ActionUpdate: true,
		models.ActionDelete: true,
		models.ActionList:   true,
	}
}

func readOnly() actionSet {
	return actionSet{models.ActionRead: true, models.ActionList: true}
}

func readWrite() actionSet {
	return actionSet{
		models.ActionCreate: true,
		models.ActionRead:   true,
		models.ActionUpdate: true,
		models.ActionList:   true,
	}
}

// capabilityMatrix is the static (role, entity, action) table. It is checked
// exhaustively at call time; there is no reflection and no fallthrough. A
// missing entry is a denial.
var capabilityMatrix = map[models.UserRole]map[models.EntityType]actionSet{
	models.RolePlatformAdmin: {
		models.EntityOrganization: allActions(),
		models.EntityTerm:         allActions(),
		models.EntityStudent:      allActions(),
		models.EntityStaff:        allActions(),
		models.EntityClass:        allActions(),
		models.EntityEnrollment:   allActions(),
		models.EntityGrade:        allActions(),
		models.EntityFeeStructure: allActions(),
		models.EntityFeeAssign:    allActions(),
		models.EntityFeePayment:   allActions(),
		models.EntityAnnouncement: allActions(),
		models.EntityDocument:     allActions(),
		models.EntityMessage:      allActions(),
	},
	models.RoleOwner: {
		models.EntityOrganization: readWrite(),
		models.EntityTerm:         allActions(),
		models.EntityStudent:      allActions(),
		models.EntityStaff:        allActions(),
		models.EntityClass:        allActions(),
		models.EntityEnrollment:   allActions(),
		models.EntityGrade:        allActions(),
		models.EntityFeeStructure: allActions(),
		models.EntityFeeAssign:    allActions(),
		models.EntityFeePayment:   allActions(),
		models.EntityAnnouncement: allActions(),
		models.EntityDocument:     allActions(),
		models.EntityMessage:      allActions(),
	},
	models.RoleAdmin: {
		models.EntityOrganization: readOnly(),
		models.EntityTerm:         readOnly(),
		models.EntityStudent:      allActions(),
		models.EntityStaff:        allActions(),
		models.EntityClass:        allActions(),
		models.EntityEnrollment:   allActions(),
		models.EntityGrade:        allActions(),
		models.EntityFeeStructure: allActions(),
		models.EntityFeeAssign:    allActions(),
		models.EntityFeePayment:   allActions(),
		models.EntityAnnouncement: allActions(),
		models.EntityDocument:     allActions(),
		models.EntityMessage:      allActions(),
	},
	models.RoleTeacher: {
		models.EntityTerm:         readOnly(),
		models.EntityStudent:      readOnly(),
		models.EntityClass:        readOnly(),
		models.EntityEnrollment:   readOnly(),
		models.EntityGrade:        readWrite(),
		models.EntityAnnouncement: readOnly(),
		models.EntityDocument:     readOnly(),
		models.EntityMessage:      readWrite(),
	},
	models.RoleStudent: {
		models.EntityTerm:         readOnly(),
		models.EntityStudent:      readOnly(),
		models.EntityEnrollment:   readOnly(),
		models.EntityGrade:        readOnly(),
		models.EntityFeeAssign:    readOnly(),
		models.EntityFeePayment:   readOnly(),
		models.EntityAnnouncement: readOnly(),
		models.EntityDocument:     readOnly(),
		models.EntityMessage:      readWrite(),
	},
	models.RoleGuardian: {
		models.EntityTerm:         readOnly(),
		models.EntityStudent:      readOnly(),
		models.EntityEnrollment:   readOnly(),
		models.EntityGrade:        readOnly(),
		models.EntityFeeAssign:    readOnly(),
		models.EntityFeePayment:   readWrite(),
		models.EntityAnnouncement: readOnly(),
		models.EntityDocument:     readOnly(),
		models.EntityMessage:      readWrite(),
	},
}

// AccessService evaluates the capability matrix, then the role-specific
// relationship narrowing. Both failure modes surface the same
// ErrInsufficientRole so a caller cannot probe whether a record exists by
// distinguishing wrong-role from wrong-relationship.
type AccessService struct {
	teaching teachingRelationReader
	wards    wardReader
	logger   *zap.Logger
}

// NewAccessService creates an access evaluator.
func NewAccessService(teaching teachingRelationReader, wards wardReader, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{teaching: teaching, wards: wards, logger: logger}
}

// Authorize returns nil when the request is allowed, ErrInsufficientRole
// otherwise. Narrowing runs only after the matrix passes.
func (s *AccessService) Authorize(ctx context.Context, rc *models.RequestContext, req AccessRequest) error {
	if rc == nil {
		return appErrors.ErrUnauthorized
	}

	entities, ok := capabilityMatrix[rc.Role]
	if !ok {
		return appErrors.ErrInsufficientRole
	}
	actions, ok := entities[req.Entity]
	if !ok || !actions[req.Action] {
		return appErrors.ErrInsufficientRole
	}

	switch rc.Role {
	case models.RoleTeacher:
		return s.narrowTeacher(ctx, rc, req)
	case models.RoleStudent:
		return s.narrowStudent(rc, req)
	case models.RoleGuardian:
		return s.narrowGuardian(ctx, rc, req)
	default:
		return nil
	}
}

func (s *AccessService) narrowTeacher(ctx context.Context, rc *models.RequestContext, req AccessRequest) error {
	switch req.Entity {
	case models.EntityStudent, models.EntityClass, models.EntityEnrollment, models.EntityGrade:
	default:
		return nil
	}

	if req.TargetClassID != "" {
		ok, err := s.teaching.TeachesClass(ctx, rc.OrganizationID, rc.TermID, rc.PrincipalID, req.TargetClassID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate teaching relation")
		}
		if !ok {
			return appErrors.ErrInsufficientRole
		}
		return nil
	}

	if req.TargetStudentID != "" {
		ok, err := s.teaching.TeachesStudent(ctx, rc.OrganizationID, rc.TermID, rc.PrincipalID, req.TargetStudentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate teaching relation")
		}
		if !ok {
			return appErrors.ErrInsufficientRole
		}
		return nil
	}

	// A teacher listing students, enrollments or grades must name a class
	// or student; an unfiltered list would enumerate the organization.
	if req.Action == models.ActionList && req.Entity != models.EntityClass {
		return appErrors.ErrInsufficientRole
	}

	return nil
}

func (s *AccessService) narrowStudent(rc *models.RequestContext, req AccessRequest) error {
	switch req.Entity {
	case models.EntityStudent, models.EntityEnrollment, models.EntityGrade, models.EntityFeeAssign, models.EntityFeePayment:
	default:
		return nil
	}

	targets := req.studentTargets()
	if len(targets) == 0 {
		if req.Action == models.ActionList {
			return appErrors.ErrInsufficientRole
		}
		return nil
	}
	for _, id := range targets {
		if rc.PersonID == "" || id != rc.PersonID {
			return appErrors.ErrInsufficientRole
		}
	}
	return nil
}

func (s *AccessService) narrowGuardian(ctx context.Context, rc *models.RequestContext, req AccessRequest) error {
	switch req.Entity {
	case models.EntityStudent, models.EntityEnrollment, models.EntityGrade, models.EntityFeeAssign, models.EntityFeePayment:
	default:
		return nil
	}

	targets := req.studentTargets()
	if len(targets) == 0 {
		if req.Action == models.ActionList {
			return appErrors.ErrInsufficientRole
		}
		return nil
	}
	wardIDs, err := s.wards.ListWardIDs(ctx, rc.OrganizationID, rc.PrincipalID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate ward relation")
	}
	wards := make(map[string]bool, len(wardIDs))
	for _, id := range wardIDs {
		wards[id] = true
	}
	for _, id := range targets {
		if !wards[id] {
			return appErrors.ErrInsufficientRole
		}
	}
	return nil
}
