package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// EnsureAccount creates acct unless an account with its email exists.
// It reports whether a new account was created.
func EnsureAccount(ctx context.Context, repo Repository, acct *Account, logger *slog.Logger) (bool, error) {
	existing, err := repo.GetByEmail(ctx, acct.Email)
	switch {
	case err == nil:
		logger.Info("account exists, skipping seed", "email", existing.Email)
		return false, nil
	case !errors.Is(err, ErrAccountNotFound):
		return false, fmt.Errorf("checking account: %w", err)
	}

	if err := repo.Create(ctx, acct); err != nil {
		return false, fmt.Errorf("creating seed account: %w", err)
	}
	logger.Info("seed account created", "email", acct.Email)
	return true, nil
}
