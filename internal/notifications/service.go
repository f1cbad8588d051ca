package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
	"github.com/angelmondragon/eventcore/pkg/pagination"
)

// Service is the read side used by delivery transports: list a recipient's
// notifications and acknowledge them.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, tenant, recipient string, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, tenant, recipient string) (int64, error)
}

type ListParams struct {
	Tenant     string
	Recipient  string
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult is one page. Cursor is empty on the last page; Unread counts
// every unread notification of the recipient, not just this page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
	Unread int64                 `json:"unread"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

type scope struct {
	tenant, recipient string
}

func newScope(tenant, recipient string) (scope, error) {
	s := scope{tenant: strings.TrimSpace(tenant), recipient: strings.TrimSpace(recipient)}
	switch {
	case s.tenant == "":
		return s, pkgerrors.New(pkgerrors.CodeValidation, "tenant schema required")
	case s.recipient == "":
		return s, pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	return s, nil
}

// decodeCursor accepts only cursors minted by List, whose ids are uuids.
func decodeCursor(token string) (*pagination.Cursor, error) {
	cursor, err := pagination.Decode(token)
	if err == nil && cursor != nil {
		_, err = uuid.Parse(cursor.ID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return cursor, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	sc, err := newScope(params.Tenant, params.Recipient)
	if err != nil {
		return nil, err
	}
	cursor, err := decodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	rows, next, err := s.repo.List(ctx, listNotificationsParams{
		Tenant:     sc.tenant,
		Recipient:  sc.recipient,
		Limit:      params.Limit,
		Cursor:     cursor,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, sc.tenant, sc.recipient)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	result := &ListResult{Items: rows, Unread: unread}
	if result.Items == nil {
		result.Items = []models.Notification{}
	}
	if next != nil {
		result.Cursor = next.Encode()
	}
	return result, nil
}

// MarkRead is idempotent; only an unknown id for this recipient is an error.
func (s *service) MarkRead(ctx context.Context, tenant, recipient string, notificationID uuid.UUID) error {
	sc, err := newScope(tenant, recipient)
	if err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	mark, err := s.repo.MarkRead(ctx, sc.tenant, sc.recipient, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !mark.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found").
			WithDetails(map[string]any{"notification_id": notificationID})
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, tenant, recipient string) (int64, error) {
	sc, err := newScope(tenant, recipient)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, sc.tenant, sc.recipient, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
