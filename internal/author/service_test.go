package author

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bikestra/paper-tracker/internal/db"
	"github.com/bikestra/paper-tracker/internal/domain"
	"github.com/bikestra/paper-tracker/internal/errors"
	"github.com/bikestra/paper-tracker/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(conn) })

	require.NoError(t, conn.Create(&domain.User{ID: 1}).Error)
	require.NoError(t, conn.Create(&domain.User{ID: 2}).Error)
	return conn
}

// linkPaper creates a paper for user 1 written by the given authors in order.
func linkPaper(t *testing.T, conn *gorm.DB, title string, status domain.PaperStatus, authors ...domain.Author) domain.Paper {
	t.Helper()
	p := domain.Paper{UserID: 1, Title: title, Status: status, Source: domain.SourceManual, OrderIndex: 10}
	require.NoError(t, conn.Create(&p).Error)
	for i, a := range authors {
		require.NoError(t, conn.Create(&domain.PaperAuthor{PaperID: p.ID, AuthorID: a.ID, Position: i}).Error)
	}
	return p
}

func TestRepository_ResolverStoreOnSQLite(t *testing.T) {
	conn := setupDB(t)
	ctx := context.Background()
	resolver := NewResolver(NewRepository(conn))

	descriptors := []domain.AuthorDescriptor{
		{Name: "José García", SourceID: "jose_garcia"},
		{Name: "B. Lee", ORCID: "0000-0002"},
		{Name: "C. Doe"},
	}
	first, err := resolver.Resolve(ctx, 1, descriptors)
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, 1, descriptors)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second))

	var count int64
	require.NoError(t, conn.Model(&domain.Author{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	// same names for another user are separate rows
	theirs, err := resolver.Resolve(ctx, 2, descriptors)
	require.NoError(t, err)
	for i := range theirs {
		assert.NotEqual(t, first[i].Author.ID, theirs[i].Author.ID)
	}
}

func TestRepository_ForPapersKeepsPositionOrder(t *testing.T) {
	conn := setupDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	a := domain.Author{UserID: 1, Name: "A", Slug: "a"}
	b := domain.Author{UserID: 1, Name: "B", Slug: "b"}
	require.NoError(t, repo.Create(ctx, &a))
	require.NoError(t, repo.Create(ctx, &b))

	p1 := linkPaper(t, conn, "one", domain.StatusPlanned, b, a)
	p2 := linkPaper(t, conn, "two", domain.StatusPlanned, a)

	byPaper, err := repo.ForPapers(ctx, []uint64{p1.ID, p2.ID})
	require.NoError(t, err)
	require.Len(t, byPaper[p1.ID], 2)
	assert.Equal(t, "B", byPaper[p1.ID][0].Name)
	assert.Equal(t, "A", byPaper[p1.ID][1].Name)
	require.Len(t, byPaper[p2.ID], 1)

	empty, err := repo.ForPapers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestService_ListAuthorsWithCounts(t *testing.T) {
	conn := setupDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()

	zed := domain.Author{UserID: 1, Name: "Zed", Slug: "zed"}
	amy := domain.Author{UserID: 1, Name: "Amy", Slug: "amy"}
	other := domain.Author{UserID: 2, Name: "Bob", Slug: "bob"}
	for _, a := range []*domain.Author{&zed, &amy, &other} {
		require.NoError(t, repo.Create(ctx, a))
	}
	linkPaper(t, conn, "one", domain.StatusPlanned, zed, amy)
	linkPaper(t, conn, "two", domain.StatusRead, zed)

	result, err := svc.ListAuthors(ctx, 1, 1, 50)
	require.NoError(t, err)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "Amy", result.Data[0].Name)
	assert.Equal(t, int64(1), result.Data[0].PaperCount)
	assert.Equal(t, "Zed", result.Data[1].Name)
	assert.Equal(t, int64(2), result.Data[1].PaperCount)
	assert.Equal(t, int64(2), result.Meta.Total)

	page, err := svc.ListAuthors(ctx, 1, 2, 1)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Zed", page.Data[0].Name)
	assert.Equal(t, 2, page.Meta.TotalPage)
}

func TestService_GetAuthor(t *testing.T) {
	conn := setupDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()

	a := domain.Author{UserID: 1, Name: "Amy", Slug: "amy"}
	require.NoError(t, repo.Create(ctx, &a))
	linkPaper(t, conn, "planned", domain.StatusPlanned, a)
	linkPaper(t, conn, "read", domain.StatusRead, a)

	detail, err := svc.GetAuthor(ctx, 1, a.ID, nil)
	require.NoError(t, err)
	assert.Len(t, detail.Papers, 2)

	read := domain.StatusRead
	detail, err = svc.GetAuthor(ctx, 1, a.ID, &read)
	require.NoError(t, err)
	require.Len(t, detail.Papers, 1)
	assert.Equal(t, "read", detail.Papers[0].Title)

	_, err = svc.GetAuthor(ctx, 2, a.ID, nil)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestService_ListAuthorsCacheInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	conn := setupDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, redis.NewCache(client))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Author{UserID: 1, Name: "Amy", Slug: "amy"}))
	result, err := svc.ListAuthors(ctx, 1, 1, 50)
	require.NoError(t, err)
	require.Len(t, result.Data, 1)

	require.NoError(t, repo.Create(ctx, &domain.Author{UserID: 1, Name: "Bob", Slug: "bob"}))
	cached, err := svc.ListAuthors(ctx, 1, 1, 50)
	require.NoError(t, err)
	assert.Len(t, cached.Data, 1)

	svc.Invalidate(ctx, 1)
	fresh, err := svc.ListAuthors(ctx, 1, 1, 50)
	require.NoError(t, err)
	assert.Len(t, fresh.Data, 2)
}
