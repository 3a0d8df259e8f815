package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/emailnorm"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
)

type draftRepository interface {
	Upsert(ctx context.Context, draft *models.Draft) error
	FindByEmails(ctx context.Context, emailNorms []string) ([]models.Draft, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Draft, error)
}

type draftEnrollmentReader interface {
	Exists(ctx context.Context, courseID, emailNorm string) (bool, error)
}

// DraftService stages imported student records and matches them against
// target courses.
type DraftService struct {
	drafts      draftRepository
	enrollments draftEnrollmentReader
	logger      *zap.Logger
}

// NewDraftService constructs DraftService.
func NewDraftService(drafts draftRepository, enrollments draftEnrollmentReader, logger *zap.Logger) *DraftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftService{drafts: drafts, enrollments: enrollments, logger: logger}
}

// SaveDrafts upserts candidate rows as drafts under the course hint.
// Rows are processed independently: one malformed candidate never blocks
// the rest.
func (s *DraftService) SaveDrafts(ctx context.Context, grant AccessGrant, courseID string, candidates []models.Candidate) models.BatchResult {
	result := models.BatchResult{Enrolled: []string{}, Failed: []models.BatchFailure{}}
	if !grant.Allows(courseID) {
		for _, c := range candidates {
			result.Failed = append(result.Failed, models.BatchFailure{Email: c.Email, Error: appErrors.ErrForbidden.Message})
		}
		return result
	}
	for _, c := range candidates {
		emailNorm := emailnorm.Normalize(c.Email)
		if emailNorm == "" {
			result.Failed = append(result.Failed, models.BatchFailure{Email: c.Email, Error: "email is empty after normalization"})
			continue
		}
		draft := &models.Draft{
			CourseID:  courseID,
			Email:     c.Email,
			EmailNorm: emailNorm,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			DNI:       c.DNI,
			Phone:     c.Phone,
			BirthDate: c.BirthDate,
			Address:   c.Address,
			Career:    c.Career,
		}
		if err := s.drafts.Upsert(ctx, draft); err != nil {
			result.Failed = append(result.Failed, models.BatchFailure{Email: c.Email, Error: appErrors.FromError(err).Message})
			continue
		}
		result.Enrolled = append(result.Enrolled, c.Email)
	}
	return result
}

// ListByCourse returns the drafts staged under a course hint.
func (s *DraftService) ListByCourse(ctx context.Context, grant AccessGrant, courseID string) ([]models.Draft, error) {
	if !grant.Allows(courseID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this course's drafts")
	}
	return s.drafts.ListByCourse(ctx, courseID)
}

// Match finds the best draft per candidate email for a target course.
// Drafts from any course are eligible; when several drafts share a
// normalized email the tie-break prefers one whose course hint equals the
// target, then the later created_at. Enrollment status is evaluated only
// against the target course, regardless of which draft won.
func (s *DraftService) Match(ctx context.Context, grant AccessGrant, courseID string, emails []string) (*models.MatchResult, error) {
	if !grant.Allows(courseID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to match against this course")
	}

	result := &models.MatchResult{Found: []models.DraftMatch{}, NotFound: []string{}}

	ordered := make([]string, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, raw := range emails {
		norm := emailnorm.Normalize(raw)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		ordered = append(ordered, norm)
	}
	if len(ordered) == 0 {
		return result, nil
	}

	drafts, err := s.drafts.FindByEmails(ctx, ordered)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load drafts")
	}

	best := make(map[string]models.Draft, len(drafts))
	for _, draft := range drafts {
		current, ok := best[draft.EmailNorm]
		if !ok || betterDraft(draft, current, courseID) {
			best[draft.EmailNorm] = draft
		}
	}

	for _, norm := range ordered {
		draft, ok := best[norm]
		if !ok {
			result.NotFound = append(result.NotFound, norm)
			continue
		}
		enrolled, err := s.enrollments.Exists(ctx, courseID, norm)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment status")
		}
		result.Found = append(result.Found, models.DraftMatch{Draft: draft, IsEnrolled: enrolled})
	}
	return result, nil
}

// betterDraft reports whether a should replace b as the match for their
// shared email: course affinity first, recency second.
func betterDraft(a, b models.Draft, targetCourseID string) bool {
	aAffinity := a.CourseID == targetCourseID
	bAffinity := b.CourseID == targetCourseID
	if aAffinity != bAffinity {
		return aAffinity
	}
	return a.CreatedAt.After(b.CreatedAt)
}
