package service

import (
	"context"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/storage"
)

// AuditService provides filtered, paginated access to the audit trail.
type AuditService struct {
	store storage.Store
}

// NewAuditService builds the audit query service.
func NewAuditService(store storage.Store) *AuditService {
	return &AuditService{store: store}
}

// Query returns a page of audit events matching the filter, newest first.
func (s *AuditService) Query(ctx context.Context, filter model.AuditFilter) (*model.AuditPage, error) {
	events, err := s.filtered(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Newest first; the store returns append order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	total := len(events)
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	pages := (total + filter.PageSize - 1) / filter.PageSize
	return &model.AuditPage{
		Data:     events[start:end],
		Total:    total,
		Pages:    pages,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *AuditService) filtered(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEvent, error) {
	events, err := s.store.ListAuditEvents(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*model.AuditEvent, 0, len(events))
	for _, event := range events {
		if filter.UDID != "" && event.UDID != filter.UDID {
			continue
		}
		if filter.Kind != "" && event.Kind != filter.Kind {
			continue
		}
		if filter.BeginTime != nil && event.CreatedAt.Before(*filter.BeginTime) {
			continue
		}
		if filter.EndTime != nil && event.CreatedAt.After(*filter.EndTime) {
			continue
		}
		matched = append(matched, event)
	}
	return matched, nil
}
