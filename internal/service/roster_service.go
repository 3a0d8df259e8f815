package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/database"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/emailnorm"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
)

type rosterIdentityRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	Create(ctx context.Context, identity *models.Identity) error
	AddRole(ctx context.Context, email string, role models.Role) error
	RemoveRole(ctx context.Context, email string, role models.Role) error
	UpdateProfile(ctx context.Context, email string, profile models.Profile) error
}

type rosterEnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, courseID, emailNorm string, role models.Role) (int64, error)
	CountByRole(ctx context.Context, emailNorm string, role models.Role) (int, error)
	ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.EnrollmentDetail, int, error)
}

type rosterCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	CreateInstitutionAdmin(ctx context.Context, grant *models.InstitutionAdmin) error
	DeleteInstitutionAdmin(ctx context.Context, institutionID, emailNorm string) (int64, error)
	CountInstitutionAdmin(ctx context.Context, emailNorm string) (int, error)
}

// AccountProvider is the identity-provider collaborator. Account creation
// stays on the provider's side; the roster only guarantees the allow-list
// and profile are ready when an account materialises, and pushes merged
// profile data onto accounts that already exist.
type AccountProvider interface {
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	UpsertProfile(ctx context.Context, email string, profile models.Profile) error
}

// ReconcileRequest asserts that one email should hold one role in one
// course, optionally carrying profile data to merge.
type ReconcileRequest struct {
	CourseID string         `json:"course_id" validate:"required"`
	Email    string         `json:"email" validate:"required"`
	Role     models.Role    `json:"role" validate:"required"`
	Profile  models.Profile `json:"profile"`
}

// RosterService is the reconciliation engine: it merges identity,
// profile, and enrollment state toward a desired (course, email, role)
// assertion, idempotently and with per-row fault isolation in batches.
type RosterService struct {
	identities  rosterIdentityRepository
	enrollments rosterEnrollmentRepository
	courses     rosterCourseRepository
	provider    AccountProvider
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRosterService constructs RosterService.
func NewRosterService(identities rosterIdentityRepository, enrollments rosterEnrollmentRepository, courses rosterCourseRepository, provider AccountProvider, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{identities: identities, enrollments: enrollments, courses: courses, provider: provider, validator: validate, logger: logger}
}

// Reconcile drives one (course, email, role) pair through the
// Unknown → Allow-listed → Profiled → Enrolled progression. Every step is
// idempotent: repeating the call never duplicates state and never errors
// on work already done. A uniqueness violation on the enrollment insert
// means a concurrent caller won the race, which is success.
func (s *RosterService) Reconcile(ctx context.Context, grant AccessGrant, req ReconcileRequest) (*models.Enrollment, error) {
	if !grant.Allows(req.CourseID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to manage this course roster")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if !models.ValidRoles[req.Role] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	emailNorm := emailnorm.Normalize(req.Email)
	if emailNorm == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is empty after normalization")
	}

	// Resolve the course before any write: a ghost course id must fail
	// with not-found, not leave identity or enrollment rows behind.
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := s.ensureIdentity(ctx, emailNorm, req.Role, req.Profile); err != nil {
		return nil, err
	}

	if err := s.syncAccountProfile(ctx, emailNorm, req.Profile); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		CourseID:  req.CourseID,
		Email:     req.Email,
		EmailNorm: emailNorm,
		Role:      req.Role,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if database.IsUniqueViolation(err) {
			s.logger.Debug("enrollment already present", zap.String("course_id", req.CourseID), zap.String("email", emailNorm))
			return enrollment, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// ensureIdentity creates or updates the allow-list entry: the role is
// appended if missing (existing roles are never removed here) and
// non-empty profile fields are merged in.
func (s *RosterService) ensureIdentity(ctx context.Context, emailNorm string, role models.Role, profile models.Profile) error {
	identity, err := s.identities.FindByEmail(ctx, emailNorm)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity")
	}

	if identity == nil {
		created := &models.Identity{
			Email:     emailNorm,
			Roles:     models.NewRoleSet(role),
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			DNI:       profile.DNI,
			Phone:     profile.Phone,
			BirthDate: profile.BirthDate,
		}
		err := s.identities.Create(ctx, created)
		if err == nil {
			return nil
		}
		if !database.IsUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create identity")
		}
		// A concurrent caller created the identity first; fall through
		// and merge into the winner's row.
	}

	if identity == nil || !identity.Roles.Has(role) {
		if err := s.identities.AddRole(ctx, emailNorm, role); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add role")
		}
	}
	if !profile.Empty() {
		if err := s.identities.UpdateProfile(ctx, emailNorm, profile); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to merge profile")
		}
	}
	return nil
}

// syncAccountProfile pushes merged profile data onto a durable account if
// one already exists. When no account exists this is a no-op: the
// provider owns account creation and will find the allow-list ready.
func (s *RosterService) syncAccountProfile(ctx context.Context, emailNorm string, profile models.Profile) error {
	if s.provider == nil || profile.Empty() {
		return nil
	}
	account, err := s.provider.FindAccountByEmail(ctx, emailNorm)
	if err != nil {
		s.logger.Warn("identity provider lookup failed", zap.String("email", emailNorm), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "identity provider unavailable")
	}
	if account == nil {
		return nil
	}
	if err := s.provider.UpsertProfile(ctx, emailNorm, profile); err != nil {
		s.logger.Warn("identity provider profile sync failed", zap.String("email", emailNorm), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "identity provider rejected profile update")
	}
	return nil
}

// ReconcileBatch runs Reconcile per row with isolated error capture: a
// failing row never aborts its siblings, and cancellation between rows
// leaves already-committed rows in place with no compensating rollback.
func (s *RosterService) ReconcileBatch(ctx context.Context, grant AccessGrant, rows []ReconcileRequest) models.BatchResult {
	result := models.BatchResult{Enrolled: []string{}, Failed: []models.BatchFailure{}}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			s.logger.Info("batch reconciliation aborted", zap.Int("processed", len(result.Enrolled)+len(result.Failed)), zap.Error(err))
			break
		}
		if _, err := s.Reconcile(ctx, grant, row); err != nil {
			result.Failed = append(result.Failed, models.BatchFailure{Email: row.Email, Error: appErrors.FromError(err).Message})
			continue
		}
		result.Enrolled = append(result.Enrolled, row.Email)
	}
	return result
}

// ListRoster returns the enrolled roster for a course, joined with
// identity profile data, paginated.
func (s *RosterService) ListRoster(ctx context.Context, grant AccessGrant, courseID string, page, pageSize int) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if !grant.Allows(courseID) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this course roster")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	details, total, err := s.enrollments.ListByCourse(ctx, courseID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return details, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// RemoveEnrollment deletes exactly the (course, email, role) row. It
// never touches Identity roles: pruning those is a separate, explicit
// administrative operation. Removing an absent row is a no-op.
func (s *RosterService) RemoveEnrollment(ctx context.Context, grant AccessGrant, courseID, email string, role models.Role) error {
	if !grant.Allows(courseID) {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to manage this course roster")
	}
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	emailNorm := emailnorm.Normalize(email)
	if emailNorm == "" {
		return appErrors.Clone(appErrors.ErrValidation, "email is empty after normalization")
	}
	affected, err := s.enrollments.Delete(ctx, courseID, emailNorm, role)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove enrollment")
	}
	if affected == 0 {
		s.logger.Debug("enrollment removal was a no-op", zap.String("course_id", courseID), zap.String("email", emailNorm), zap.String("role", string(role)))
	}
	return nil
}

// GrantInstitutionAdmin stores an institution-admin grant and makes sure
// the identity carries the admin-institucion role. A duplicate grant is
// success; repeating the call changes nothing.
func (s *RosterService) GrantInstitutionAdmin(ctx context.Context, grant AccessGrant, institutionID, email string) error {
	if grant.Scope() != models.ScopePlatformAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "platform administrator required")
	}
	emailNorm := emailnorm.Normalize(email)
	if emailNorm == "" {
		return appErrors.Clone(appErrors.ErrValidation, "email is empty after normalization")
	}
	if err := s.ensureIdentity(ctx, emailNorm, models.RoleInstitutionAdmin, models.Profile{}); err != nil {
		return err
	}
	err := s.courses.CreateInstitutionAdmin(ctx, &models.InstitutionAdmin{
		InstitutionID: institutionID,
		Email:         email,
		EmailNorm:     emailNorm,
	})
	if err != nil && !database.IsUniqueViolation(err) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store institution admin grant")
	}
	return nil
}

// PruneInstitutionAdmin revokes an institution-admin grant and strips the
// admin-institucion role from the identity only when no grant remains
// anywhere on the platform. The identity row itself always survives.
func (s *RosterService) PruneInstitutionAdmin(ctx context.Context, grant AccessGrant, institutionID, email string) error {
	if grant.Scope() != models.ScopePlatformAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "platform administrator required")
	}
	emailNorm := emailnorm.Normalize(email)
	if emailNorm == "" {
		return appErrors.Clone(appErrors.ErrValidation, "email is empty after normalization")
	}
	if _, err := s.courses.DeleteInstitutionAdmin(ctx, institutionID, emailNorm); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke institution admin")
	}
	remaining, err := s.courses.CountInstitutionAdmin(ctx, emailNorm)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count remaining grants")
	}
	if remaining > 0 {
		return nil
	}
	if err := s.identities.RemoveRole(ctx, emailNorm, models.RoleInstitutionAdmin); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prune role")
	}
	return nil
}
