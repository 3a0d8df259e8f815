package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/emailnorm"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
)

// AccountAdminProvider is the provider surface for platform-level
// account administration.
type AccountAdminProvider interface {
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	CreateAccount(ctx context.Context, email string, profile models.Profile) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
}

// CreateAccountRequest provisions one durable account on the provider.
type CreateAccountRequest struct {
	Email   string         `json:"email" validate:"required,email"`
	Profile models.Profile `json:"profile"`
}

// AccountService mediates platform-admin access to provider accounts.
type AccountService struct {
	provider  AccountAdminProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountService constructs AccountService.
func NewAccountService(provider AccountAdminProvider, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{provider: provider, validator: validate, logger: logger}
}

// Create provisions an account. Requires a platform-level grant. An
// account that already exists is returned as-is, not an error.
func (s *AccountService) Create(ctx context.Context, grant AccessGrant, req CreateAccountRequest) (*models.Account, error) {
	if grant.Scope() != models.ScopePlatformAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "platform administrator required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}
	emailNorm := emailnorm.Normalize(req.Email)
	if emailNorm == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is empty after normalization")
	}
	existing, err := s.provider.FindAccountByEmail(ctx, emailNorm)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "provider lookup failed")
	}
	if existing != nil {
		return existing, nil
	}
	account, err := s.provider.CreateAccount(ctx, emailNorm, req.Profile)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "provider account creation failed")
	}
	s.logger.Info("account provisioned", zap.String("email", emailNorm))
	return account, nil
}

// List returns every provider account. Requires a platform-level grant.
func (s *AccountService) List(ctx context.Context, grant AccessGrant) ([]models.Account, error) {
	if grant.Scope() != models.ScopePlatformAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "platform administrator required")
	}
	accounts, err := s.provider.ListAccounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "provider listing failed")
	}
	return accounts, nil
}
