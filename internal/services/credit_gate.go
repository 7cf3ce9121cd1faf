package services

import (
	"context"
	"fmt"
	"strings"

	"designlens/internal/config"
	"designlens/internal/events"
	"designlens/internal/redis"
	"designlens/internal/repository"
	lens_errors "designlens/pkg/errors"
	"designlens/pkg/logger"

	"go.uber.org/zap"
)

// AccountCache is satisfied by redis.CacheStore.
type AccountCache interface {
	GetAccount(ctx context.Context, accountID string) (*redis.AccountCache, error)
	SetAccount(ctx context.Context, a *redis.AccountCache) error
}

// Access is the outcome of a credit check.
type Access struct {
	Allowed   bool   `json:"allowed"`
	Unlimited bool   `json:"unlimited"`
	Balance   int64  `json:"balance"`
	Warning   string `json:"warning,omitempty"`
}

// CreditGate decides whether an account may start an analysis. The decision is advisory;
// the analysis backend stays the authority on actual spend.
type CreditGate struct {
	accounts   repository.AccountRepository
	cache      AccountCache
	notifier   events.Notifier
	privileged map[string]struct{}
	threshold  int64
	cost       int64
	log        *logger.Logger
}

func NewCreditGate(accounts repository.AccountRepository, cache AccountCache, notifier events.Notifier, cfg config.CreditsConfig, log *logger.Logger) *CreditGate {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if notifier == nil {
		notifier = events.NewLogNotifier(log)
	}
	privileged := make(map[string]struct{}, len(cfg.PrivilegedRoles))
	for _, r := range cfg.PrivilegedRoles {
		privileged[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	if cfg.AnalysisCost <= 0 {
		cfg.AnalysisCost = 1
	}
	return &CreditGate{
		accounts:   accounts,
		cache:      cache,
		notifier:   notifier,
		privileged: privileged,
		threshold:  cfg.LowBalanceThreshold,
		cost:       cfg.AnalysisCost,
		log:        log,
	}
}

func (g *CreditGate) Cost() int64 { return g.cost }

// CheckAccess reports whether accountID may run one analysis. Privileged roles skip the
// balance entirely. A balance below the cost is denied with a *CreditError; a balance at or
// under the low threshold is allowed with a warning.
func (g *CreditGate) CheckAccess(ctx context.Context, accountID string) (Access, error) {
	if accountID == "" {
		return Access{}, lens_errors.ErrUnauthorized
	}
	role, balance, err := g.lookup(ctx, accountID)
	if err != nil {
		return Access{}, fmt.Errorf("credit lookup: %w", err)
	}

	if _, ok := g.privileged[strings.ToLower(role)]; ok {
		return Access{Allowed: true, Unlimited: true, Balance: balance}, nil
	}

	if balance < g.cost {
		g.notifier.Notify(ctx, events.New(events.TypeCreditsDenied, events.LevelError,
			"You are out of credits. Top up to run another analysis.").ForSession(accountID, ""))
		return Access{Allowed: false, Balance: balance}, &lens_errors.CreditError{
			AccountID: accountID,
			Balance:   balance,
			Required:  g.cost,
		}
	}

	access := Access{Allowed: true, Balance: balance}
	if balance <= g.threshold {
		access.Warning = fmt.Sprintf("Only %d credits left.", balance)
		g.notifier.Notify(ctx, events.New(events.TypeCreditsLow, events.LevelWarning, access.Warning).
			ForSession(accountID, "").WithPayload(access))
	}
	return access, nil
}

// lookup reads role and balance through the cache. Cache failures fall through to the database.
func (g *CreditGate) lookup(ctx context.Context, accountID string) (string, int64, error) {
	if g.cache != nil {
		cached, err := g.cache.GetAccount(ctx, accountID)
		if err != nil {
			g.log.WithContext(ctx).Warn("account cache read failed", zap.String("account_id", accountID), zap.Error(err))
		} else if cached != nil {
			return cached.Role, cached.Balance, nil
		}
	}
	if g.accounts == nil {
		return "", 0, lens_errors.ErrServiceUnavailable
	}

	role, err := g.accounts.GetRole(ctx, accountID)
	if err != nil {
		return "", 0, err
	}
	// privileged accounts never need a balance
	if _, ok := g.privileged[strings.ToLower(role)]; ok {
		g.store(ctx, accountID, role, 0)
		return role, 0, nil
	}
	balance, err := g.accounts.GetBalance(ctx, accountID)
	if err != nil {
		return "", 0, err
	}
	g.store(ctx, accountID, role, balance)
	return role, balance, nil
}

func (g *CreditGate) store(ctx context.Context, accountID, role string, balance int64) {
	if g.cache == nil {
		return
	}
	if err := g.cache.SetAccount(ctx, &redis.AccountCache{AccountID: accountID, Role: role, Balance: balance}); err != nil {
		g.log.WithContext(ctx).Warn("account cache write failed", zap.String("account_id", accountID), zap.Error(err))
	}
}
