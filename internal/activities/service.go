package activities

import (
	"context"
	"strings"

	"github.com/angelmondragon/eventcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
	"github.com/angelmondragon/eventcore/pkg/pagination"
)

// Service exposes the timeline read API.
type Service interface {
	ListByEntity(ctx context.Context, params ListParams) ([]models.Activity, error)
}

type ListParams struct {
	Tenant     string
	EntityType string
	EntityID   string
	Limit      int
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "activities repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListByEntity(ctx context.Context, params ListParams) ([]models.Activity, error) {
	if strings.TrimSpace(params.Tenant) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant schema required")
	}
	if params.EntityType == "" || params.EntityID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity_type and entity_id required")
	}
	rows, err := s.repo.ListByEntity(ctx, params.Tenant, params.EntityType, params.EntityID, pagination.PageSize(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activities")
	}
	return rows, nil
}
