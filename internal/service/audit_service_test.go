package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAudit(t *testing.T, store *memory.Store, n int, udid string, kind model.AuditKind) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := store.AppendAuditEvent(context.Background(), &model.AuditEvent{
			UDID:   udid,
			Kind:   kind,
			Detail: fmt.Sprintf("event %d", i),
		})
		require.NoError(t, err)
	}
}

func TestQueryReturnsNewestFirst(t *testing.T) {
	store := memory.New()
	seedAudit(t, store, 3, "udid-1", model.AuditAuthenticated)

	page, err := NewAuditService(store).Query(context.Background(), model.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "event 2", page.Data[0].Detail)
	assert.Equal(t, "event 0", page.Data[2].Detail)
}

func TestQueryFilters(t *testing.T) {
	store := memory.New()
	seedAudit(t, store, 2, "udid-1", model.AuditAuthenticated)
	seedAudit(t, store, 3, "udid-2", model.AuditCommandFailed)

	svc := NewAuditService(store)

	page, err := svc.Query(context.Background(), model.AuditFilter{UDID: "udid-2"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	page, err = svc.Query(context.Background(), model.AuditFilter{Kind: model.AuditAuthenticated})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = svc.Query(context.Background(), model.AuditFilter{UDID: "udid-1", Kind: model.AuditCommandFailed})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestQueryPagination(t *testing.T) {
	store := memory.New()
	seedAudit(t, store, 25, "udid-1", model.AuditAuthenticated)

	svc := NewAuditService(store)

	page, err := svc.Query(context.Background(), model.AuditFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, page.Data, 10)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.Pages)

	page, err = svc.Query(context.Background(), model.AuditFilter{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, page.Data, 5)

	// Past the end yields an empty page, not an error.
	page, err = svc.Query(context.Background(), model.AuditFilter{Page: 9, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
}

func TestQueryClampsPageSize(t *testing.T) {
	store := memory.New()
	seedAudit(t, store, 5, "udid-1", model.AuditAuthenticated)

	page, err := NewAuditService(store).Query(context.Background(), model.AuditFilter{PageSize: 100000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.PageSize)
}
