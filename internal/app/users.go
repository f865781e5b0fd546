package app

import (
	"context"
	"errors"
	"strings"

	"findit/pkg/auth"
	"findit/pkg/domain"
	"findit/pkg/store"
)

// SignUp registers a non-admin user.
func (a *App) SignUp(ctx context.Context, fullName, email, password string) (domain.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)
	if fullName == "" || email == "" || password == "" {
		return domain.User{}, invalid("please fill all fields")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, invalid(err.Error())
	}
	if _, ok, err := a.store.GetUserByEmail(ctx, email); err != nil {
		return domain.User{}, persistence("check email", err)
	} else if ok {
		return domain.User{}, ErrEmailExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		CreatedAt:    a.now(),
	}
	if err := a.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, ErrEmailExists
		}
		return domain.User{}, persistence("create user", err)
	}
	return user, nil
}

// SignIn checks credentials. Unknown emails and wrong passwords are not
// distinguished.
func (a *App) SignIn(ctx context.Context, email, password string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, persistence("get user", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}
