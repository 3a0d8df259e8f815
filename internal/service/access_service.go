package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/emailnorm"
)

type accessIdentityReader interface {
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
}

type accessEnrollmentReader interface {
	ExistsRole(ctx context.Context, courseID, emailNorm string, roles ...models.Role) (bool, error)
}

type accessCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	InstitutionAdminExists(ctx context.Context, institutionID, emailNorm string) (bool, error)
}

// AccessGrant is the capability handed out after a successful
// authorization. Mutating roster operations require one; the zero value
// grants nothing, and nothing outside this package can mint one.
type AccessGrant struct {
	courseID string
	email    string
	scope    models.Scope
}

// CourseID returns the course the grant was resolved against. Empty for
// platform-level grants.
func (g AccessGrant) CourseID() string { return g.courseID }

// Email returns the normalized principal email.
func (g AccessGrant) Email() string { return g.email }

// Scope returns the resolved scope.
func (g AccessGrant) Scope() models.Scope {
	if g.scope == "" {
		return models.ScopeNone
	}
	return g.scope
}

// Allows reports whether the grant authorizes mutations on the course.
func (g AccessGrant) Allows(courseID string) bool {
	if !g.Scope().Mutating() {
		return false
	}
	if g.scope == models.ScopePlatformAdmin {
		return true
	}
	return g.courseID == courseID
}

// AccessService resolves what an acting principal may do on a course.
type AccessService struct {
	identities  accessIdentityReader
	enrollments accessEnrollmentReader
	courses     accessCourseReader
	logger      *zap.Logger
}

// NewAccessService constructs AccessService.
func NewAccessService(identities accessIdentityReader, enrollments accessEnrollmentReader, courses accessCourseReader, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{identities: identities, enrollments: enrollments, courses: courses, logger: logger}
}

// Authorize resolves the principal's scope on a course. Checks run from
// cheapest and strongest to most expensive, first match wins:
// platform-admin role, supervisor role, a live docente enrollment, a live
// nodocente enrollment, then an institution-admin grant on the course's
// owning institution. Supervisors get platform-admin-equivalent scope on
// every path, mutations included.
func (s *AccessService) Authorize(ctx context.Context, courseID, principalEmail string) (AccessGrant, error) {
	emailNorm := emailnorm.Normalize(principalEmail)
	if emailNorm == "" {
		return AccessGrant{}, appErrors.Clone(appErrors.ErrUnauthorized, "principal email missing")
	}
	none := AccessGrant{courseID: courseID, email: emailNorm, scope: models.ScopeNone}

	identity, err := s.identities.FindByEmail(ctx, emailNorm)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return none, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve principal")
	}
	if identity != nil {
		if identity.Roles.Has(models.RolePlatformAdmin) || identity.Roles.Has(models.RoleSupervisor) {
			return AccessGrant{courseID: courseID, email: emailNorm, scope: models.ScopePlatformAdmin}, nil
		}
	}

	isTeacher, err := s.enrollments.ExistsRole(ctx, courseID, emailNorm, models.RoleTeacher)
	if err != nil {
		return none, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve course role")
	}
	if isTeacher {
		return AccessGrant{courseID: courseID, email: emailNorm, scope: models.ScopeTeacher}, nil
	}

	isStaff, err := s.enrollments.ExistsRole(ctx, courseID, emailNorm, models.RoleStaff)
	if err != nil {
		return none, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve course role")
	}
	if isStaff {
		return AccessGrant{courseID: courseID, email: emailNorm, scope: models.ScopeStaff}, nil
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return none, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return none, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	isAdmin, err := s.courses.InstitutionAdminExists(ctx, course.InstitutionID, emailNorm)
	if err != nil {
		return none, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve institution admin")
	}
	if isAdmin {
		return AccessGrant{courseID: courseID, email: emailNorm, scope: models.ScopeInstitutionAdmin}, nil
	}

	return none, nil
}

// AuthorizePlatform resolves platform-level scope only: platform-admin and
// supervisor qualify, nothing course-scoped does. Used by operations that
// are not bound to a single course, such as admin role pruning.
func (s *AccessService) AuthorizePlatform(ctx context.Context, principalEmail string) (AccessGrant, error) {
	emailNorm := emailnorm.Normalize(principalEmail)
	if emailNorm == "" {
		return AccessGrant{}, appErrors.Clone(appErrors.ErrUnauthorized, "principal email missing")
	}
	identity, err := s.identities.FindByEmail(ctx, emailNorm)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AccessGrant{email: emailNorm, scope: models.ScopeNone}, nil
		}
		return AccessGrant{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve principal")
	}
	if identity.Roles.HasAny(models.RolePlatformAdmin, models.RoleSupervisor) {
		return AccessGrant{email: emailNorm, scope: models.ScopePlatformAdmin}, nil
	}
	return AccessGrant{email: emailNorm, scope: models.ScopeNone}, nil
}
