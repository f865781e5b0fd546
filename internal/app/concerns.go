package app

import (
	"context"
	"errors"
	"io"
	"strings"

	"findit/internal/util"
	"findit/pkg/domain"
	"findit/pkg/notify"
	"findit/pkg/storage"
	"findit/pkg/store"
)

// ConcernDecision reports the outcome of an admin decision on a concern.
// The status write has happened whenever a ConcernDecision is returned;
// EmailError is advisory.
type ConcernDecision struct {
	ConcernID  int64
	Status     domain.Status
	Notified   bool
	EmailError error
}

// ConcernFields carries the editable fields of a concern as submitted.
// Status is only honoured by EditConcern and may be empty.
type ConcernFields struct {
	ItemName    string `json:"item_name"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// RaiseConcernInput is a new concern report with its image.
type RaiseConcernInput struct {
	Email       string
	ItemName    string
	Category    string
	Date        string
	Location    string
	Description string
	ItemType    string
	ImageName   string
	Image       io.Reader
	ImageSize   int64
}

// DecideConcern approves or rejects a concern and notifies its reporter.
// The status is persisted before the notification is attempted and a
// failed notification never undoes it.
func (a *App) DecideConcern(ctx context.Context, adminUserID, rawConcernID, decision string) (ConcernDecision, error) {
	if _, err := a.RequireAdmin(ctx, adminUserID); err != nil {
		return ConcernDecision{}, err
	}
	status, err := parseDecision(decision)
	if err != nil {
		return ConcernDecision{}, err
	}
	concernID, err := parseID(rawConcernID, "concern ID")
	if err != nil {
		return ConcernDecision{}, err
	}
	concern, ok, err := a.store.GetConcernWithReporter(ctx, concernID)
	if err != nil {
		return ConcernDecision{}, persistence("get concern", err)
	}
	if !ok {
		return ConcernDecision{}, ErrNotFound
	}
	updated, err := a.store.SetConcernStatus(ctx, concernID, status)
	if err != nil {
		return ConcernDecision{}, persistence("update concern status", err)
	}
	if !updated {
		return ConcernDecision{}, ErrNotFound
	}

	result := ConcernDecision{ConcernID: concernID, Status: status}
	// the status is committed; a client hang-up must not cancel the mail
	sendCtx := context.WithoutCancel(ctx)
	body, err := notify.ConcernUpdate(concern.ItemName, status)
	if err == nil {
		err = a.notifier.Send(sendCtx, concern.Email, notify.SubjectConcernUpdate, body)
	}
	if err != nil {
		util.LoggerFromContext(ctx).Warn("concern notification failed",
			"concern_id", concernID,
			"status", status,
			"err", err,
		)
		result.EmailError = err
		return result, nil
	}
	result.Notified = true
	return result, nil
}

// ListPendingConcerns returns concerns awaiting a decision, newest first.
func (a *App) ListPendingConcerns(ctx context.Context, adminUserID string) ([]domain.Concern, error) {
	if _, err := a.RequireAdmin(ctx, adminUserID); err != nil {
		return nil, err
	}
	items, err := a.store.ListConcerns(ctx, store.ConcernFilter{Status: domain.StatusPending})
	if err != nil {
		return nil, persistence("list pending concerns", err)
	}
	return items, nil
}

// ListConcerns returns every concern with its reporter, newest first.
func (a *App) ListConcerns(ctx context.Context, adminUserID string) ([]domain.ConcernWithReporter, error) {
	if _, err := a.RequireAdmin(ctx, adminUserID); err != nil {
		return nil, err
	}
	items, err := a.store.ListConcernsWithReporter(ctx)
	if err != nil {
		return nil, persistence("list concerns", err)
	}
	return items, nil
}

// ListItems returns every concern, newest first.
func (a *App) ListItems(ctx context.Context, adminUserID string) ([]domain.Concern, error) {
	if _, err := a.RequireAdmin(ctx, adminUserID); err != nil {
		return nil, err
	}
	items, err := a.store.ListConcerns(ctx, store.ConcernFilter{})
	if err != nil {
		return nil, persistence("list items", err)
	}
	return items, nil
}

// ListAllItems is the public view of every concern, by item date.
func (a *App) ListAllItems(ctx context.Context) ([]domain.Concern, error) {
	items, err := a.store.ListConcerns(ctx, store.ConcernFilter{ByDate: true})
	if err != nil {
		return nil, persistence("list all items", err)
	}
	return items, nil
}

// ListFound returns approved found items, newest first.
func (a *App) ListFound(ctx context.Context) ([]domain.Concern, error) {
	items, err := a.store.ListConcerns(ctx, store.ConcernFilter{
		ItemType: domain.ItemFound,
		Status:   domain.StatusApproved,
	})
	if err != nil {
		return nil, persistence("list found items", err)
	}
	return items, nil
}

// ListByReporter returns the concerns reported by the user with email.
func (a *App) ListByReporter(ctx context.Context, email string) ([]domain.Concern, error) {
	user, err := a.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	items, err := a.store.ListConcerns(ctx, store.ConcernFilter{UserID: user.ID})
	if err != nil {
		return nil, persistence("list reporter items", err)
	}
	return items, nil
}

// EditConcern overwrites a concern's fields on behalf of an admin. A
// non-empty status is applied without notifying anyone.
func (a *App) EditConcern(ctx context.Context, adminUserID, rawConcernID string, fields ConcernFields) error {
	if _, err := a.RequireAdmin(ctx, adminUserID); err != nil {
		return err
	}
	return a.updateConcern(ctx, rawConcernID, fields, true)
}

// UpdateOwnConcern overwrites a concern's fields from the reporter's
// "my items" view. Status is never changed.
func (a *App) UpdateOwnConcern(ctx context.Context, rawConcernID string, fields ConcernFields) error {
	return a.updateConcern(ctx, rawConcernID, fields, false)
}

func (a *App) updateConcern(ctx context.Context, rawConcernID string, fields ConcernFields, allowStatus bool) error {
	concernID, err := parseID(rawConcernID, "concern ID")
	if err != nil {
		return err
	}
	upd, err := buildUpdate(fields, allowStatus)
	if err != nil {
		return err
	}
	ok, err := a.store.UpdateConcern(ctx, concernID, upd)
	if err != nil {
		return persistence("update concern", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func buildUpdate(fields ConcernFields, allowStatus bool) (domain.ConcernUpdate, error) {
	upd := domain.ConcernUpdate{
		ItemName:    strings.TrimSpace(fields.ItemName),
		Category:    strings.TrimSpace(fields.Category),
		Location:    strings.TrimSpace(fields.Location),
		Description: strings.TrimSpace(fields.Description),
	}
	if upd.ItemName == "" || upd.Category == "" || upd.Location == "" || strings.TrimSpace(fields.Date) == "" {
		return domain.ConcernUpdate{}, invalid("item_name, category, date and location are required")
	}
	date, err := parseDate(fields.Date)
	if err != nil {
		return domain.ConcernUpdate{}, err
	}
	upd.Date = date
	if allowStatus && strings.TrimSpace(fields.Status) != "" {
		status, err := parseStatus(fields.Status)
		if err != nil {
			return domain.ConcernUpdate{}, err
		}
		upd.Status = &status
	}
	return upd, nil
}

// DeleteConcern removes a concern on behalf of an admin.
func (a *App) DeleteConcern(ctx context.Context, adminUserID, rawConcernID string) error {
	if _, err := a.RequireAdmin(ctx, adminUserID); err != nil {
		return err
	}
	return a.deleteConcern(ctx, rawConcernID)
}

// DeleteOwnConcern removes a concern from the reporter's view.
func (a *App) DeleteOwnConcern(ctx context.Context, rawConcernID string) error {
	return a.deleteConcern(ctx, rawConcernID)
}

// deleteConcern removes the row, then its image. Image removal is best
// effort; claims on the concern are left in place.
func (a *App) deleteConcern(ctx context.Context, rawConcernID string) error {
	concernID, err := parseID(rawConcernID, "concern ID")
	if err != nil {
		return err
	}
	concern, ok, err := a.store.GetConcern(ctx, concernID)
	if err != nil {
		return persistence("get concern", err)
	}
	if !ok {
		return ErrNotFound
	}
	deleted, err := a.store.DeleteConcern(ctx, concernID)
	if err != nil {
		return persistence("delete concern", err)
	}
	if !deleted {
		return ErrNotFound
	}
	if concern.Image != "" {
		if err := a.images.Delete(ctx, concern.Image); err != nil {
			util.LoggerFromContext(ctx).Warn("delete concern image failed",
				"concern_id", concernID,
				"image", concern.Image,
				"err", err,
			)
		}
	}
	return nil
}

// RaiseConcern stores the image and records a pending concern. The image
// is removed again if the concern cannot be inserted.
func (a *App) RaiseConcern(ctx context.Context, in RaiseConcernInput) (domain.Concern, error) {
	concern := domain.Concern{
		ItemName:    strings.TrimSpace(in.ItemName),
		Category:    strings.TrimSpace(in.Category),
		Location:    strings.TrimSpace(in.Location),
		Description: strings.TrimSpace(in.Description),
		ItemType:    domain.ItemType(strings.ToLower(strings.TrimSpace(in.ItemType))),
		Status:      domain.StatusPending,
	}
	if strings.TrimSpace(in.Email) == "" || concern.ItemName == "" || concern.Category == "" ||
		strings.TrimSpace(in.Date) == "" || concern.Location == "" || concern.Description == "" ||
		concern.ItemType == "" || in.Image == nil || strings.TrimSpace(in.ImageName) == "" {
		return domain.Concern{}, invalid("please fill all fields including image")
	}
	if concern.ItemType != domain.ItemLost && concern.ItemType != domain.ItemFound {
		return domain.Concern{}, invalid("itemType must be lost or found")
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return domain.Concern{}, err
	}
	concern.Date = date

	user, err := a.userByEmail(ctx, in.Email)
	if err != nil {
		return domain.Concern{}, err
	}
	concern.UserID = user.ID

	imagePath, err := a.images.Save(ctx, in.ImageName, in.Image, in.ImageSize)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrInvalidName) {
			return domain.Concern{}, invalid(err.Error())
		}
		return domain.Concern{}, persistence("save image", err)
	}
	concern.Image = imagePath
	concern.CreatedAt = a.now()

	if err := a.store.CreateConcern(ctx, &concern); err != nil {
		if delErr := a.images.Delete(ctx, imagePath); delErr != nil {
			util.LoggerFromContext(ctx).Warn("remove orphaned image failed", "image", imagePath, "err", delErr)
		}
		return domain.Concern{}, persistence("create concern", err)
	}
	return concern, nil
}

func (a *App) userByEmail(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.User{}, invalid("email is required")
	}
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, persistence("get user", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}
