// Package provider integrates the external identity provider. Accounts
// live there, not in the roster stores: the roster only prepares
// allow-list state and pushes merged profile data onto accounts that
// already exist.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/config"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/emailnorm"
)

// Casdoor is an AccountProvider backed by a Casdoor deployment, with a
// Redis read-through cache for account lookups.
type Casdoor struct {
	client   *casdoorsdk.Client
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCasdoor builds the provider client.
func NewCasdoor(cfg config.ProviderConfig, redisClient *redis.Client, logger *zap.Logger) *Casdoor {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.OrganizationName,
		cfg.ApplicationName,
	)
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Casdoor{client: client, redis: redisClient, cacheTTL: ttl, logger: logger}
}

func cacheKey(emailNorm string) string {
	return "account:" + emailNorm
}

// FindAccountByEmail returns the durable account for an email, or nil
// when the provider has none yet.
func (c *Casdoor) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	emailNorm := emailnorm.Normalize(email)

	if cached := c.fromCache(ctx, emailNorm); cached != nil {
		if cached.ID == "" {
			return nil, nil
		}
		return cached, nil
	}

	user, err := c.client.GetUserByEmail(emailNorm)
	if err != nil {
		if isNotFound(err) {
			c.toCache(ctx, emailNorm, &models.Account{})
			return nil, nil
		}
		return nil, fmt.Errorf("provider lookup: %w", err)
	}
	if user == nil {
		c.toCache(ctx, emailNorm, &models.Account{})
		return nil, nil
	}

	account := accountFromUser(user)
	c.toCache(ctx, emailNorm, account)
	return account, nil
}

// CreateAccount provisions a durable account on the provider.
func (c *Casdoor) CreateAccount(ctx context.Context, email string, profile models.Profile) (*models.Account, error) {
	emailNorm := emailnorm.Normalize(email)
	user := &casdoorsdk.User{
		Name:        emailNorm,
		Email:       emailNorm,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		DisplayName: strings.TrimSpace(profile.FirstName + " " + profile.LastName),
		Phone:       profile.Phone,
	}
	if _, err := c.client.AddUser(user); err != nil {
		return nil, fmt.Errorf("provider create account: %w", err)
	}
	c.invalidate(ctx, emailNorm)
	return &models.Account{ID: user.Name, Email: emailNorm, FirstName: profile.FirstName, LastName: profile.LastName}, nil
}

// ListAccounts returns every durable account known to the provider.
func (c *Casdoor) ListAccounts(ctx context.Context) ([]models.Account, error) {
	users, err := c.client.GetUsers()
	if err != nil {
		return nil, fmt.Errorf("provider list accounts: %w", err)
	}
	accounts := make([]models.Account, 0, len(users))
	for _, user := range users {
		accounts = append(accounts, *accountFromUser(user))
	}
	return accounts, nil
}

// UpsertProfile pushes merged profile fields onto an existing account.
// Empty fields are left untouched on the provider side as well.
func (c *Casdoor) UpsertProfile(ctx context.Context, email string, profile models.Profile) error {
	emailNorm := emailnorm.Normalize(email)
	user, err := c.client.GetUserByEmail(emailNorm)
	if err != nil {
		return fmt.Errorf("provider lookup: %w", err)
	}
	if user == nil {
		return nil
	}
	if profile.FirstName != "" {
		user.FirstName = profile.FirstName
	}
	if profile.LastName != "" {
		user.LastName = profile.LastName
	}
	if profile.Phone != "" {
		user.Phone = profile.Phone
	}
	if name := strings.TrimSpace(user.FirstName + " " + user.LastName); name != "" {
		user.DisplayName = name
	}
	if _, err := c.client.UpdateUser(user); err != nil {
		return fmt.Errorf("provider update account: %w", err)
	}
	c.invalidate(ctx, emailNorm)
	return nil
}

func accountFromUser(user *casdoorsdk.User) *models.Account {
	return &models.Account{
		ID:        user.Name,
		Email:     emailnorm.Normalize(user.Email),
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

func (c *Casdoor) fromCache(ctx context.Context, emailNorm string) *models.Account {
	if c.redis == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, cacheKey(emailNorm)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("account cache read failed", zap.Error(err))
		}
		return nil
	}
	var account models.Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil
	}
	return &account
}

func (c *Casdoor) toCache(ctx context.Context, emailNorm string, account *models.Account) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(account)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(emailNorm), data, c.cacheTTL).Err(); err != nil {
		c.logger.Warn("account cache write failed", zap.Error(err))
	}
}

func (c *Casdoor) invalidate(ctx context.Context, emailNorm string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, cacheKey(emailNorm)).Err(); err != nil {
		c.logger.Warn("account cache invalidation failed", zap.Error(err))
	}
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}
