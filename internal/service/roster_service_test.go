package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
)

type mockIdentityRepo struct {
	identities  map[string]*models.Identity
	createErr   error
	addedRoles  []string
	removed     []string
	profileHits int
}

func (m *mockIdentityRepo) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	if identity, ok := m.identities[email]; ok {
		clone := *identity
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockIdentityRepo) Create(ctx context.Context, identity *models.Identity) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.identities == nil {
		m.identities = make(map[string]*models.Identity)
	}
	if _, ok := m.identities[identity.Email]; ok {
		return &pq.Error{Code: "23505"}
	}
	clone := *identity
	m.identities[identity.Email] = &clone
	return nil
}

func (m *mockIdentityRepo) AddRole(ctx context.Context, email string, role models.Role) error {
	m.addedRoles = append(m.addedRoles, email+":"+string(role))
	if identity, ok := m.identities[email]; ok {
		identity.Roles.Add(role)
	}
	return nil
}

func (m *mockIdentityRepo) RemoveRole(ctx context.Context, email string, role models.Role) error {
	m.removed = append(m.removed, email+":"+string(role))
	if identity, ok := m.identities[email]; ok {
		identity.Roles.Remove(role)
	}
	return nil
}

func (m *mockIdentityRepo) UpdateProfile(ctx context.Context, email string, profile models.Profile) error {
	m.profileHits++
	identity, ok := m.identities[email]
	if !ok {
		return sql.ErrNoRows
	}
	if profile.FirstName != "" {
		identity.FirstName = profile.FirstName
	}
	if profile.LastName != "" {
		identity.LastName = profile.LastName
	}
	if profile.DNI != "" {
		identity.DNI = profile.DNI
	}
	if profile.Phone != "" {
		identity.Phone = profile.Phone
	}
	return nil
}

type enrollmentKey struct {
	courseID  string
	emailNorm string
}

// mockEnrollmentRepo mirrors the unique index on (course_id, email_norm):
// one row per email per course, with the role stored alongside.
type mockEnrollmentRepo struct {
	rows      map[enrollmentKey]models.Role
	createErr error
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.rows == nil {
		m.rows = make(map[enrollmentKey]models.Role)
	}
	key := enrollmentKey{enrollment.CourseID, enrollment.EmailNorm}
	if _, ok := m.rows[key]; ok {
		return &pq.Error{Code: "23505"}
	}
	m.rows[key] = enrollment.Role
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, courseID, emailNorm string, role models.Role) (int64, error) {
	key := enrollmentKey{courseID, emailNorm}
	if held, ok := m.rows[key]; !ok || held != role {
		return 0, nil
	}
	delete(m.rows, key)
	return 1, nil
}

func (m *mockEnrollmentRepo) CountByRole(ctx context.Context, emailNorm string, role models.Role) (int, error) {
	count := 0
	for key, held := range m.rows {
		if key.emailNorm == emailNorm && held == role {
			count++
		}
	}
	return count, nil
}

func (m *mockEnrollmentRepo) ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.EnrollmentDetail, int, error) {
	details := []models.EnrollmentDetail{}
	for key, held := range m.rows {
		if key.courseID == courseID {
			details = append(details, models.EnrollmentDetail{
				Enrollment: models.Enrollment{CourseID: key.courseID, EmailNorm: key.emailNorm, Role: held},
			})
		}
	}
	return details, len(details), nil
}

type mockCourseRepo struct {
	courses     map[string]*models.Course
	adminGrants map[string]int
	granted     map[string]bool
	deleted     []string
}

func (m *mockCourseRepo) CreateInstitutionAdmin(ctx context.Context, grant *models.InstitutionAdmin) error {
	key := grant.InstitutionID + ":" + grant.EmailNorm
	if m.granted == nil {
		m.granted = make(map[string]bool)
	}
	if m.granted[key] {
		return &pq.Error{Code: "23505"}
	}
	m.granted[key] = true
	m.adminGrants[grant.EmailNorm]++
	return nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		return course, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) DeleteInstitutionAdmin(ctx context.Context, institutionID, emailNorm string) (int64, error) {
	m.deleted = append(m.deleted, institutionID+":"+emailNorm)
	if m.adminGrants[emailNorm] > 0 {
		m.adminGrants[emailNorm]--
		return 1, nil
	}
	return 0, nil
}

func (m *mockCourseRepo) CountInstitutionAdmin(ctx context.Context, emailNorm string) (int, error) {
	return m.adminGrants[emailNorm], nil
}

type mockProvider struct {
	accounts map[string]*models.Account
	findErr  error
	upserts  []string
}

func (m *mockProvider) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if account, ok := m.accounts[email]; ok {
		return account, nil
	}
	return nil, nil
}

func (m *mockProvider) UpsertProfile(ctx context.Context, email string, profile models.Profile) error {
	m.upserts = append(m.upserts, email)
	return nil
}

func newRosterFixture() (*RosterService, *mockIdentityRepo, *mockEnrollmentRepo, *mockCourseRepo, *mockProvider) {
	identities := &mockIdentityRepo{identities: make(map[string]*models.Identity)}
	enrollments := &mockEnrollmentRepo{rows: make(map[enrollmentKey]models.Role)}
	courses := &mockCourseRepo{
		courses:     map[string]*models.Course{"c1": {ID: "c1", InstitutionID: "i1"}},
		adminGrants: make(map[string]int),
	}
	provider := &mockProvider{accounts: make(map[string]*models.Account)}
	svc := NewRosterService(identities, enrollments, courses, provider, nil, nil)
	return svc, identities, enrollments, courses, provider
}

func teacherGrant(courseID string) AccessGrant {
	return AccessGrant{courseID: courseID, email: "teacher@school.test", scope: models.ScopeTeacher}
}

func platformGrant() AccessGrant {
	return AccessGrant{email: "admin@school.test", scope: models.ScopePlatformAdmin}
}

func TestReconcileCreatesIdentityAndEnrollment(t *testing.T) {
	svc, identities, enrollments, _, _ := newRosterFixture()

	enrollment, err := svc.Reconcile(context.Background(), teacherGrant("c1"), ReconcileRequest{
		CourseID: "c1",
		Email:    " Ana.Perez@UNI.edu ",
		Role:     models.RoleStudent,
		Profile:  models.Profile{FirstName: "Ana", LastName: "Perez"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ana.perez@uni.edu", enrollment.EmailNorm)
	assert.Equal(t, " Ana.Perez@UNI.edu ", enrollment.Email)

	identity, ok := identities.identities["ana.perez@uni.edu"]
	require.True(t, ok)
	assert.True(t, identity.Roles.Has(models.RoleStudent))
	assert.Equal(t, "Ana", identity.FirstName)
	assert.Len(t, enrollments.rows, 1)
}

func TestReconcileIsIdempotent(t *testing.T) {
	svc, _, enrollments, _, _ := newRosterFixture()
	req := ReconcileRequest{CourseID: "c1", Email: "ana@uni.edu", Role: models.RoleStudent}

	_, err := svc.Reconcile(context.Background(), teacherGrant("c1"), req)
	require.NoError(t, err)
	_, err = svc.Reconcile(context.Background(), teacherGrant("c1"), req)
	require.NoError(t, err)
	assert.Len(t, enrollments.rows, 1)
}

func TestReconcileTreatsUniqueViolationAsSuccess(t *testing.T) {
	svc, _, enrollments, _, _ := newRosterFixture()
	enrollments.createErr = &pq.Error{Code: "23505"}

	enrollment, err := svc.Reconcile(context.Background(), teacherGrant("c1"), ReconcileRequest{
		CourseID: "c1", Email: "ana@uni.edu", Role: models.RoleStudent,
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@uni.edu", enrollment.EmailNorm)
}

func TestReconcileRejectsForeignCourse(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()

	_, err := svc.Reconcile(context.Background(), teacherGrant("c1"), ReconcileRequest{
		CourseID: "c2", Email: "ana@uni.edu", Role: models.RoleStudent,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestReconcileRejectsUnknownRole(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()

	_, err := svc.Reconcile(context.Background(), teacherGrant("c1"), ReconcileRequest{
		CourseID: "c1", Email: "ana@uni.edu", Role: "principal",
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestReconcileRejectsUnrepresentableEmail(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()

	_, err := svc.Reconcile(context.Background(), teacherGrant("c1"), ReconcileRequest{
		CourseID: "c1", Email: " \t\n ", Role: models.RoleStudent,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestReconcileSyncsExistingAccountProfile(t *testing.T) {
	svc, _, _, _, provider := newRosterFixture()
	provider.accounts["ana@uni.edu"] = &models.Account{ID: "u1", Email: "ana@uni.edu"}

	_, err := svc.Reconcile(context.Background(), teacherGrant("c1"), ReconcileRequest{
		CourseID: "c1", Email: "ana@uni.edu", Role: models.RoleStudent,
		Profile: models.Profile{FirstName: "Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@uni.edu"}, provider.upserts)
}

func TestReconcileSkipsProviderWhenNoAccount(t *testing.T) {
	svc, _, _, _, provider := newRosterFixture()

	_, err := svc.Reconcile(context.Background(), teacherGrant("c1"), ReconcileRequest{
		CourseID: "c1", Email: "ana@uni.edu", Role: models.RoleStudent,
		Profile: models.Profile{FirstName: "Ana"},
	})
	require.NoError(t, err)
	assert.Empty(t, provider.upserts)
}

func TestReconcileSurfacesProviderOutage(t *testing.T) {
	svc, _, enrollments, _, provider := newRosterFixture()
	provider.findErr = assert.AnError

	_, err := svc.Reconcile(context.Background(), teacherGrant("c1"), ReconcileRequest{
		CourseID: "c1", Email: "ana@uni.edu", Role: models.RoleStudent,
		Profile: models.Profile{FirstName: "Ana"},
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUpstream))
	assert.Empty(t, enrollments.rows)
}

func TestReconcileBatchIsolatesFailures(t *testing.T) {
	svc, _, enrollments, _, _ := newRosterFixture()

	result := svc.ReconcileBatch(context.Background(), teacherGrant("c1"), []ReconcileRequest{
		{CourseID: "c1", Email: "ana@uni.edu", Role: models.RoleStudent},
		{CourseID: "c1", Email: "   ", Role: models.RoleStudent},
		{CourseID: "c1", Email: "luis@uni.edu", Role: models.RoleStudent},
	})
	assert.Len(t, result.Enrolled, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "   ", result.Failed[0].Email)
	assert.Len(t, enrollments.rows, 2)
}

func TestReconcileBatchStopsOnCancellation(t *testing.T) {
	svc, _, enrollments, _, _ := newRosterFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.ReconcileBatch(ctx, teacherGrant("c1"), []ReconcileRequest{
		{CourseID: "c1", Email: "ana@uni.edu", Role: models.RoleStudent},
		{CourseID: "c1", Email: "luis@uni.edu", Role: models.RoleStudent},
	})
	assert.Empty(t, result.Enrolled)
	assert.Empty(t, result.Failed)
	assert.Empty(t, enrollments.rows)
}

func TestRemoveEnrollmentIsRoleScoped(t *testing.T) {
	svc, _, enrollments, _, _ := newRosterFixture()
	grant := teacherGrant("c1")

	_, err := svc.Reconcile(context.Background(), grant, ReconcileRequest{CourseID: "c1", Email: "ana@uni.edu", Role: models.RoleTeacher})
	require.NoError(t, err)

	// Removal under the wrong role never takes the docente row with it.
	require.NoError(t, svc.RemoveEnrollment(context.Background(), grant, "c1", "ana@uni.edu", models.RoleStudent))
	assert.Len(t, enrollments.rows, 1)

	require.NoError(t, svc.RemoveEnrollment(context.Background(), grant, "c1", "ana@uni.edu", models.RoleTeacher))
	assert.Empty(t, enrollments.rows)
}

func TestRemoveThenReconcileRestoresSingleRow(t *testing.T) {
	svc, _, enrollments, _, _ := newRosterFixture()
	grant := teacherGrant("c1")
	req := ReconcileRequest{CourseID: "c1", Email: "ana@uni.edu", Role: models.RoleStudent}

	_, err := svc.Reconcile(context.Background(), grant, req)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveEnrollment(context.Background(), grant, "c1", "ana@uni.edu", models.RoleStudent))
	_, err = svc.Reconcile(context.Background(), grant, req)
	require.NoError(t, err)
	assert.Len(t, enrollments.rows, 1)
}

func TestRemoveAbsentEnrollmentIsNoop(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()

	err := svc.RemoveEnrollment(context.Background(), teacherGrant("c1"), "c1", "ghost@uni.edu", models.RoleStudent)
	assert.NoError(t, err)
}

func TestReconcileUnknownCourseLeavesNoState(t *testing.T) {
	svc, identities, enrollments, _, _ := newRosterFixture()

	_, err := svc.Reconcile(context.Background(), platformGrant(), ReconcileRequest{
		CourseID: "missing",
		Email:    "Ana@uni.edu",
		Role:     models.RoleStudent,
		Profile:  models.Profile{FirstName: "Ana"},
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	assert.Empty(t, identities.identities)
	assert.Empty(t, enrollments.rows)
}

func TestRemoveEnrollmentUnknownCourse(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()
	grant := AccessGrant{courseID: "missing", email: "admin@school.test", scope: models.ScopePlatformAdmin}

	err := svc.RemoveEnrollment(context.Background(), grant, "missing", "ana@uni.edu", models.RoleStudent)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestGrantInstitutionAdminAddsRoleAndGrant(t *testing.T) {
	svc, identities, _, courses, _ := newRosterFixture()

	require.NoError(t, svc.GrantInstitutionAdmin(context.Background(), platformGrant(), "i1", "Admin@Uni.edu"))
	identity := identities.identities["admin@uni.edu"]
	require.NotNil(t, identity)
	assert.True(t, identity.Roles.Has(models.RoleInstitutionAdmin))
	assert.Equal(t, 1, courses.adminGrants["admin@uni.edu"])
}

func TestGrantInstitutionAdminIsIdempotent(t *testing.T) {
	svc, _, _, courses, _ := newRosterFixture()

	require.NoError(t, svc.GrantInstitutionAdmin(context.Background(), platformGrant(), "i1", "admin@uni.edu"))
	require.NoError(t, svc.GrantInstitutionAdmin(context.Background(), platformGrant(), "i1", "admin@uni.edu"))
	assert.Equal(t, 1, courses.adminGrants["admin@uni.edu"])
}

func TestGrantInstitutionAdminRequiresPlatformScope(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()

	err := svc.GrantInstitutionAdmin(context.Background(), teacherGrant("c1"), "i1", "admin@uni.edu")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestGrantThenPruneRoundTrip(t *testing.T) {
	svc, identities, _, _, _ := newRosterFixture()

	require.NoError(t, svc.GrantInstitutionAdmin(context.Background(), platformGrant(), "i1", "admin@uni.edu"))
	require.NoError(t, svc.PruneInstitutionAdmin(context.Background(), platformGrant(), "i1", "admin@uni.edu"))
	assert.False(t, identities.identities["admin@uni.edu"].Roles.Has(models.RoleInstitutionAdmin))
}

func TestPruneInstitutionAdminKeepsRoleWhileGrantsRemain(t *testing.T) {
	svc, identities, _, courses, _ := newRosterFixture()
	identities.identities["admin@uni.edu"] = &models.Identity{
		Email: "admin@uni.edu",
		Roles: models.NewRoleSet(models.RoleInstitutionAdmin),
	}
	courses.adminGrants["admin@uni.edu"] = 2

	require.NoError(t, svc.PruneInstitutionAdmin(context.Background(), platformGrant(), "i1", "admin@uni.edu"))
	assert.Empty(t, identities.removed)
	assert.True(t, identities.identities["admin@uni.edu"].Roles.Has(models.RoleInstitutionAdmin))
}

func TestPruneInstitutionAdminStripsRoleWhenLastGrantGoes(t *testing.T) {
	svc, identities, _, courses, _ := newRosterFixture()
	identities.identities["admin@uni.edu"] = &models.Identity{
		Email: "admin@uni.edu",
		Roles: models.NewRoleSet(models.RoleInstitutionAdmin, models.RoleTeacher),
	}
	courses.adminGrants["admin@uni.edu"] = 1

	require.NoError(t, svc.PruneInstitutionAdmin(context.Background(), platformGrant(), "i1", "admin@uni.edu"))
	identity := identities.identities["admin@uni.edu"]
	assert.False(t, identity.Roles.Has(models.RoleInstitutionAdmin))
	assert.True(t, identity.Roles.Has(models.RoleTeacher))
}

func TestPruneInstitutionAdminRequiresPlatformScope(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()

	err := svc.PruneInstitutionAdmin(context.Background(), teacherGrant("c1"), "i1", "admin@uni.edu")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestListRosterRejectsForeignCourse(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()

	_, _, err := svc.ListRoster(context.Background(), teacherGrant("c1"), "c2", 1, 20)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}
