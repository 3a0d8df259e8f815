package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
)

type mockAdminProvider struct {
	accounts map[string]*models.Account
	created  []string
	listErr  error
}

func (m *mockAdminProvider) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	if account, ok := m.accounts[email]; ok {
		return account, nil
	}
	return nil, nil
}

func (m *mockAdminProvider) CreateAccount(ctx context.Context, email string, profile models.Profile) (*models.Account, error) {
	m.created = append(m.created, email)
	account := &models.Account{ID: email, Email: email, FirstName: profile.FirstName, LastName: profile.LastName}
	if m.accounts == nil {
		m.accounts = make(map[string]*models.Account)
	}
	m.accounts[email] = account
	return account, nil
}

func (m *mockAdminProvider) ListAccounts(ctx context.Context) ([]models.Account, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		out = append(out, *account)
	}
	return out, nil
}

func TestAccountCreateRequiresPlatformScope(t *testing.T) {
	svc := NewAccountService(&mockAdminProvider{}, nil, nil)

	_, err := svc.Create(context.Background(), teacherGrant("c1"), CreateAccountRequest{Email: "ana@uni.edu"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestAccountCreateNormalizesEmail(t *testing.T) {
	provider := &mockAdminProvider{}
	svc := NewAccountService(provider, nil, nil)

	account, err := svc.Create(context.Background(), platformGrant(), CreateAccountRequest{Email: " Ana@UNI.edu "})
	require.NoError(t, err)
	assert.Equal(t, "ana@uni.edu", account.Email)
	assert.Equal(t, []string{"ana@uni.edu"}, provider.created)
}

func TestAccountCreateIsIdempotent(t *testing.T) {
	provider := &mockAdminProvider{accounts: map[string]*models.Account{
		"ana@uni.edu": {ID: "u1", Email: "ana@uni.edu"},
	}}
	svc := NewAccountService(provider, nil, nil)

	account, err := svc.Create(context.Background(), platformGrant(), CreateAccountRequest{Email: "ana@uni.edu"})
	require.NoError(t, err)
	assert.Equal(t, "u1", account.ID)
	assert.Empty(t, provider.created)
}

func TestAccountListSurfacesProviderFailure(t *testing.T) {
	svc := NewAccountService(&mockAdminProvider{listErr: assert.AnError}, nil, nil)

	_, err := svc.List(context.Background(), platformGrant())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUpstream))
}
