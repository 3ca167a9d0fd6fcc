package catalog

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

func ptr[T any](v T) *T { return &v }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestCreateValidates(t *testing.T) {
	svc := New(db.NewTestDB(t), time.Minute)
	ctx := context.Background()

	tests := []struct {
		name string
		book store.NewBook
	}{
		{"missing title", store.NewBook{Title: "  ", TotalCopies: 1}},
		{"negative copies", store.NewBook{Title: "Dune", TotalCopies: -2}},
		{"negative price", store.NewBook{Title: "Dune", Price: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.book)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	b, err := svc.Create(ctx, store.NewBook{Title: " Dune ", Author: "Frank Herbert", TotalCopies: 2})
	require.NoError(t, err)
	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, 2, b.AvailableCopies)
}

func TestGetUpdateDelete(t *testing.T) {
	svc := New(db.NewTestDB(t), time.Minute)
	ctx := context.Background()

	_, err := svc.Get(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)

	b, err := svc.Create(ctx, store.NewBook{Title: "Dune", TotalCopies: 2})
	require.NoError(t, err)

	_, err = svc.Update(ctx, b.ID, model.BookPatch{})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Update(ctx, b.ID, model.BookPatch{Title: ptr("")})
	assert.ErrorIs(t, err, ErrInvalid)

	updated, err := svc.Update(ctx, b.ID, model.BookPatch{Category: ptr("Sci-Fi"), TotalCopies: ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, "Sci-Fi", updated.Category)
	assert.Equal(t, 4, updated.AvailableCopies)

	require.NoError(t, svc.Delete(ctx, b.ID))
	_, err = svc.Get(ctx, b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, b.ID), store.ErrNotFound)
}

func TestCover(t *testing.T) {
	svc := New(db.NewTestDB(t), time.Minute)
	ctx := context.Background()

	b, err := svc.Create(ctx, store.NewBook{Title: "Dune", TotalCopies: 1})
	require.NoError(t, err)

	_, _, err = svc.Cover(ctx, b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.SetCover(ctx, b.ID, bytes.NewReader([]byte("plain text")))
	assert.ErrorIs(t, err, ErrInvalid)

	withCover, err := svc.SetCover(ctx, b.ID, bytes.NewReader(pngBytes(t, 1200, 1800)))
	require.NoError(t, err)
	assert.Equal(t, "/api/books/1/cover", withCover.CoverImage)

	data, mime, err := svc.Cover(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.NotEmpty(t, data)

	_, err = svc.SetCover(ctx, 999, bytes.NewReader(pngBytes(t, 10, 10)))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHomeSummary(t *testing.T) {
	database := db.NewTestDB(t)
	svc := New(database, time.Minute)
	ctx := context.Background()

	h, err := svc.Home(ctx)
	require.NoError(t, err)
	assert.Zero(t, h.TotalBooks)
	assert.NotNil(t, h.TopCategories)
	assert.NotNil(t, h.LatestBooks)

	for i, cat := range []string{"Classics", "Classics", "Classics", "Sci-Fi", "Sci-Fi", "Poetry", "Drama", "History"} {
		_, err := svc.Create(ctx, store.NewBook{Title: string(rune('A' + i)), Category: cat, TotalCopies: 1})
		require.NoError(t, err)
	}

	h, err = svc.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, h.TotalBooks)
	assert.Equal(t, 5, h.TotalCategories)
	require.Len(t, h.TopCategories, HomeTopCategories)
	assert.Equal(t, "Classics", h.TopCategories[0].Category)
	assert.Equal(t, 3, h.TopCategories[0].Count)
	require.Len(t, h.LatestBooks, HomeLatestBooks)
	assert.Equal(t, "H", h.LatestBooks[0].Title)
}

func TestHomeCachedUntilInvalidated(t *testing.T) {
	database := db.NewTestDB(t)
	svc := New(database, time.Hour)
	ctx := context.Background()

	_, err := svc.Create(ctx, store.NewBook{Title: "Dune", TotalCopies: 1})
	require.NoError(t, err)

	h, err := svc.Home(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, h.TotalBooks)

	// Writes that bypass the catalog are not seen until the cache is dropped.
	_, err = store.CreateBook(ctx, database, store.NewBook{Title: "Emma", TotalCopies: 1})
	require.NoError(t, err)

	h, err = svc.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.TotalBooks)

	// Catalog mutations drop the cache.
	_, err = svc.Create(ctx, store.NewBook{Title: "Persuasion", TotalCopies: 1})
	require.NoError(t, err)

	h, err = svc.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, h.TotalBooks)
}

func TestHomeBuiltBeforeMutationIsNotCached(t *testing.T) {
	database := db.NewTestDB(t)
	svc := New(database, time.Hour)
	ctx := context.Background()

	_, err := svc.Create(ctx, store.NewBook{Title: "Dune", TotalCopies: 1})
	require.NoError(t, err)

	// A build that started before a concurrent mutation finished.
	gen := svc.home.Generation()
	_, err = svc.Create(ctx, store.NewBook{Title: "Emma", TotalCopies: 1})
	require.NoError(t, err)

	h, err := svc.refreshHome(ctx, gen)
	require.NoError(t, err)
	assert.Equal(t, 2, h.TotalBooks)
	assert.Equal(t, 0, svc.home.Len(), "stale build must not be cached")

	h, err = svc.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, h.TotalBooks)
	assert.Equal(t, 1, svc.home.Len())
}

func TestHomeTracksIssuedBorrowers(t *testing.T) {
	database := db.NewTestDB(t)
	svc := New(database, time.Hour)
	engine := circulation.New(database, circulation.Options{Invalidator: svc})
	ctx := context.Background()

	book, err := svc.Create(ctx, store.NewBook{Title: "Dune", TotalCopies: 2})
	require.NoError(t, err)

	reader, err := store.CreateUser(ctx, database, store.NewUser{Name: "R", Email: "r@example.com", PasswordHash: "x", Role: model.RoleUser})
	require.NoError(t, err)
	librarian := circulation.Actor{UserID: reader.ID, Role: model.RoleLibrarian}

	h, err := svc.Home(ctx)
	require.NoError(t, err)
	assert.Zero(t, h.ActiveStudents)

	rec, err := engine.Request(ctx, circulation.Actor{UserID: reader.ID, Role: model.RoleUser}, book.ID)
	require.NoError(t, err)
	_, err = engine.Approve(ctx, librarian, rec.ID)
	require.NoError(t, err)

	h, err = svc.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.ActiveStudents)
	assert.Equal(t, 1, h.LatestBooks[0].AvailableCopies)
}
