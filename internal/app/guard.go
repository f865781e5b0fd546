package app

import (
	"context"
	"strconv"
	"strings"

	"findit/pkg/domain"
)

// RequireAdmin checks that rawUserID names an existing admin. A missing id
// is rejected before the store is consulted.
func (a *App) RequireAdmin(ctx context.Context, rawUserID string) (domain.User, error) {
	rawUserID = strings.TrimSpace(rawUserID)
	if rawUserID == "" {
		return domain.User{}, ErrMissingUserID
	}
	id, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil || id <= 0 {
		return domain.User{}, ErrInvalidUserID
	}
	user, ok, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, persistence("get user", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if !user.IsAdmin {
		return domain.User{}, ErrForbidden
	}
	return user, nil
}
