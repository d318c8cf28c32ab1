package category

import (
	"context"
	"net/http"
	"testing"

	"github.com/bikestra/paper-tracker/internal/db"
	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(conn) })

	require.NoError(t, conn.Create(&domain.User{ID: 1}).Error)
	require.NoError(t, conn.Create(&domain.User{ID: 2}).Error)
	return NewService(NewRepository(conn)), conn
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.Status)
}

func TestCreateAndList(t *testing.T) {
	svc, conn := setupService(t)
	ctx := context.Background()

	ml, err := svc.Create(ctx, 1, "  Machine Learning ")
	require.NoError(t, err)
	assert.Equal(t, "Machine Learning", ml.Name)

	_, err = svc.Create(ctx, 1, "Algebra")
	require.NoError(t, err)
	_, err = svc.Create(ctx, 2, "Zoology")
	require.NoError(t, err)

	require.NoError(t, conn.Create(&domain.Paper{UserID: 1, Title: "p", CategoryID: &ml.ID, OrderIndex: 10}).Error)

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Algebra", list[0].Name)
	assert.Equal(t, int64(0), list[0].PaperCount)
	assert.Equal(t, "Machine Learning", list[1].Name)
	assert.Equal(t, int64(1), list[1].PaperCount)
}

func TestCreate_DuplicateAndEmpty(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, "ML")
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, "ML")
	assertStatus(t, err, http.StatusConflict)

	_, err = svc.Create(ctx, 2, "ML")
	assert.NoError(t, err, "names are unique per user only")

	_, err = svc.Create(ctx, 1, "   ")
	assertStatus(t, err, http.StatusBadRequest)
}

func TestRename(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, 1, "A")
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, "B")
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, 1, a.ID, "C")
	require.NoError(t, err)
	assert.Equal(t, "C", renamed.Name)

	_, err = svc.Rename(ctx, 1, a.ID, "B")
	assertStatus(t, err, http.StatusConflict)

	_, err = svc.Rename(ctx, 2, a.ID, "D")
	assertStatus(t, err, http.StatusNotFound)
}

func TestDelete_NullsOutPapers(t *testing.T) {
	svc, conn := setupService(t)
	ctx := context.Background()

	cat, err := svc.Create(ctx, 1, "Doomed")
	require.NoError(t, err)
	keep, err := svc.Create(ctx, 1, "Kept")
	require.NoError(t, err)

	papers := []domain.Paper{
		{UserID: 1, Title: "one", CategoryID: &cat.ID, OrderIndex: 10},
		{UserID: 1, Title: "two", CategoryID: &cat.ID, OrderIndex: 20},
		{UserID: 1, Title: "three", CategoryID: &keep.ID, OrderIndex: 30},
	}
	require.NoError(t, conn.Create(&papers).Error)

	require.NoError(t, svc.Delete(ctx, 1, cat.ID))

	_, err = svc.Get(ctx, 1, cat.ID)
	assertStatus(t, err, http.StatusNotFound)

	var dangling int64
	require.NoError(t, conn.Model(&domain.Paper{}).
		Where("category_id IS NOT NULL AND category_id NOT IN (?)", conn.Model(&domain.Category{}).Select("id")).
		Count(&dangling).Error)
	assert.Zero(t, dangling)

	var stored []domain.Paper
	require.NoError(t, conn.Order("id").Find(&stored).Error)
	require.Len(t, stored, 3)
	assert.Nil(t, stored[0].CategoryID)
	assert.Nil(t, stored[1].CategoryID)
	require.NotNil(t, stored[2].CategoryID)
	assert.Equal(t, keep.ID, *stored[2].CategoryID)
}

func TestDelete_OtherUsersCategory(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	cat, err := svc.Create(ctx, 1, "Mine")
	require.NoError(t, err)

	assertStatus(t, svc.Delete(ctx, 2, cat.ID), http.StatusNotFound)

	_, err = svc.Get(ctx, 1, cat.ID)
	assert.NoError(t, err)
}
