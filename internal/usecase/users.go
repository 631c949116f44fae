package usecase

import (
	"context"
	"errors"
	"log/slog"

	"message-relay/internal/domain"
)

type Directory interface {
	FindByMobile(ctx context.Context, mobile string) ([]domain.UserIdentity, error)
}

// UserResolver maps a canonical mobile number to a directory user.
type UserResolver struct {
	dir Directory
	log *slog.Logger
}

func NewUserResolver(dir Directory, logger *slog.Logger) (*UserResolver, error) {
	if dir == nil {
		return nil, errors.New("usecase: directory must not be nil")
	}
	return &UserResolver{dir: dir, log: loggerOrDefault(logger)}, nil
}

// Resolve returns the first directory match for mobile. An empty result is
// reported as ErrorNotFound.
func (r *UserResolver) Resolve(ctx context.Context, mobile string) (domain.UserIdentity, error) {
	users, err := r.dir.FindByMobile(ctx, mobile)
	if err != nil {
		return domain.UserIdentity{}, newError(ErrorUpstream, "directory_lookup_error", err)
	}
	if len(users) == 0 {
		return domain.UserIdentity{}, newError(ErrorNotFound, "unregistered_sender", nil)
	}
	if len(users) > 1 {
		// List order is the only tie-break the directory offers.
		r.log.Warn("multiple directory matches, using first", "mobile", mobile, "matches", len(users))
	}
	return users[0], nil
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
