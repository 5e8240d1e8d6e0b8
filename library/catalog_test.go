package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCatalog(t *testing.T) (*Catalog, *Database) {
	t.Helper()
	db := tempDB(t)
	return NewCatalog(db, zap.NewNop()), db
}

func bookReq(isbn, title string) BookRequest {
	return BookRequest{
		ISBN:            isbn,
		Title:           title,
		Author:          "Frank Herbert",
		Publisher:       "Chilton",
		PublicationYear: 1965,
		PageCount:       412,
		Genre:           "Science Fiction",
	}
}

func TestAddBookOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	book, err := cat.AddBook(ctx, bookReq("978-0441013593", "Dune"))
	require.NoError(t, err)
	assert.Positive(t, book.ID)
	assert.Equal(t, StatusAvailable, book.Status)

	all, err := cat.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, book, all[0])
}

func TestAddBookTrimsFields(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	req := bookReq("  42  ", "  Dune ")
	book, err := cat.AddBook(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "42", book.ISBN)
	assert.Equal(t, "Dune", book.Title)
}

func TestAddBookDuplicateISBN(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	_, err := cat.AddBook(ctx, bookReq("1", "First"))
	require.NoError(t, err)

	_, err = cat.AddBook(ctx, bookReq("1", "Second"))
	assert.ErrorIs(t, err, ErrDuplicateISBN)

	all, err := cat.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAddBookValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BookRequest)
		field  string
	}{
		{"missing isbn", func(r *BookRequest) { r.ISBN = "" }, "isbn"},
		{"blank title", func(r *BookRequest) { r.Title = "   " }, "title"},
		{"missing author", func(r *BookRequest) { r.Author = "" }, "author"},
		{"missing publisher", func(r *BookRequest) { r.Publisher = "" }, "publisher"},
		{"zero year", func(r *BookRequest) { r.PublicationYear = 0 }, "publicationYear"},
		{"negative pages", func(r *BookRequest) { r.PageCount = -3 }, "pageCount"},
		{"missing genre", func(r *BookRequest) { r.Genre = "" }, "genre"},
		{"unknown status", func(r *BookRequest) { r.Status = "lost" }, "status"},
		{"starts on loan", func(r *BookRequest) { r.Status = StatusOnLoan }, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, _ := newCatalog(t)
			req := bookReq("1", "Dune")
			tt.mutate(&req)

			_, err := cat.AddBook(context.Background(), req)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.True(t, fe.Has(tt.field), "violations: %v", fe.Violations)
		})
	}
}

func TestAddBookReportsEveryMissingField(t *testing.T) {
	cat, _ := newCatalog(t)

	_, err := cat.AddBook(context.Background(), BookRequest{})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	for _, f := range []string{"isbn", "title", "author", "publisher", "publicationYear", "pageCount", "genre"} {
		assert.True(t, fe.Has(f), f)
	}
}

func TestEditBook(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	book, err := cat.AddBook(ctx, bookReq("1", "Dune"))
	require.NoError(t, err)
	other, err := cat.AddBook(ctx, bookReq("2", "Children of Dune"))
	require.NoError(t, err)

	req := bookReq("1", "Dune (Deluxe)")
	req.PageCount = 600
	edited, err := cat.EditBook(ctx, book.ID, req)
	require.NoError(t, err)
	assert.Equal(t, book.ID, edited.ID)

	got, err := cat.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune (Deluxe)", got.Title)
	assert.Equal(t, 600, got.PageCount)
	assert.Equal(t, StatusAvailable, got.Status)

	t.Run("isbn of another book is accepted on edit", func(t *testing.T) {
		_, err := cat.EditBook(ctx, other.ID, bookReq("1", "Children of Dune"))
		assert.NoError(t, err)
	})

	t.Run("missing book", func(t *testing.T) {
		_, err := cat.EditBook(ctx, 999, bookReq("9", "Nope"))
		assert.True(t, IsNotFound(err, KindBook))
	})

	t.Run("status cannot be changed", func(t *testing.T) {
		req := bookReq("1", "Dune")
		req.Status = StatusOnLoan
		_, err := cat.EditBook(ctx, book.ID, req)
		var fe *FieldError
		require.ErrorAs(t, err, &fe)
		assert.True(t, fe.Has("status"))
	})

	t.Run("current status may be repeated", func(t *testing.T) {
		req := bookReq("1", "Dune")
		req.Status = StatusAvailable
		_, err := cat.EditBook(ctx, book.ID, req)
		assert.NoError(t, err)
	})

	t.Run("invalid fields", func(t *testing.T) {
		req := bookReq("1", "")
		_, err := cat.EditBook(ctx, book.ID, req)
		var fe *FieldError
		require.ErrorAs(t, err, &fe)
		assert.True(t, fe.Has("title"))
	})
}

func TestDeleteBook(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	book, err := cat.AddBook(ctx, bookReq("1", "Dune"))
	require.NoError(t, err)

	require.NoError(t, cat.DeleteBook(ctx, book.ID))
	_, err = cat.GetBook(ctx, book.ID)
	assert.True(t, IsNotFound(err, KindBook))

	assert.True(t, IsNotFound(cat.DeleteBook(ctx, book.ID), KindBook))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	cat, db := newCatalog(t)

	add := func(isbn, title, author, publisher, genre string) *Book {
		req := BookRequest{ISBN: isbn, Title: title, Author: author, Publisher: publisher,
			PublicationYear: 2000, PageCount: 100, Genre: genre}
		b, err := cat.AddBook(ctx, req)
		require.NoError(t, err)
		return b
	}
	dune := add("1", "Dune", "Frank Herbert", "Chilton", "Science Fiction")
	hobbit := add("2", "The Hobbit", "J.R.R. Tolkien", "Allen & Unwin", "Fantasy")
	pct := add("3", "100% Pure", "Someone", "Percent Press", "Cooking")
	require.NoError(t, db.SetBookStatus(ctx, hobbit.ID, StatusOnLoan))

	ids := func(books []*Book) []int64 {
		out := make([]int64, 0, len(books))
		for _, b := range books {
			out = append(out, b.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		term   string
		filter StatusFilter
		want   []int64
	}{
		{"empty term lists all", "", FilterAll, []int64{dune.ID, hobbit.ID, pct.ID}},
		{"title case-insensitive", "dUNe", FilterAll, []int64{dune.ID}},
		{"author", "tolkien", FilterAll, []int64{hobbit.ID}},
		{"publisher", "unwin", FilterAll, []int64{hobbit.ID}},
		{"genre", "fiction", FilterAll, []int64{dune.ID}},
		{"available only", "", FilterAvailable, []int64{dune.ID, pct.ID}},
		{"on loan only", "", FilterOnLoan, []int64{hobbit.ID}},
		{"term and filter", "the", FilterAvailable, []int64{}},
		{"percent is literal", "%", FilterAll, []int64{pct.ID}},
		{"underscore is literal", "_", FilterAll, []int64{}},
		{"no match", "zzz", FilterAll, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cat.Search(ctx, tt.term, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	t.Run("unknown filter", func(t *testing.T) {
		_, err := cat.Search(ctx, "", StatusFilter("lost"))
		var fe *FieldError
		assert.ErrorAs(t, err, &fe)
	})
}

func TestSearchNonASCII(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	add := func(isbn, title, author string) int64 {
		req := BookRequest{ISBN: isbn, Title: title, Author: author, Publisher: "İletişim",
			PublicationYear: 1922, PageCount: 300, Genre: "Roman"}
		b, err := cat.AddBook(ctx, req)
		require.NoError(t, err)
		return b.ID
	}
	calikusu := add("1", "Çalıkuşu", "Reşat Nuri Güntekin")
	olu := add("2", "Ölü Ozanlar", "Ahmet Ümit")
	dune := add("3", "Dune", "Frank Herbert")

	tests := []struct {
		term string
		want []int64
	}{
		{"Çalıkuşu", []int64{calikusu}},
		{"çalıkuşu", []int64{calikusu}},
		{"ÇALIKUŞU", []int64{calikusu}},
		{"Ölü", []int64{olu}},
		{"ölü", []int64{olu}},
		{"ÖLÜ OZANLAR", []int64{olu}},
		{"güntekin", []int64{calikusu}},
		{"ÜMİT", []int64{olu}},
		{"iletişim", []int64{calikusu, olu, dune}},
		{"DUNE", []int64{dune}},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got, err := cat.Search(ctx, tt.term, FilterAll)
			require.NoError(t, err)
			ids := make([]int64, 0, len(got))
			for _, b := range got {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFoldCase(t *testing.T) {
	assert.Equal(t, "çalikuşu", foldCase("ÇALIKUŞU"))
	assert.Equal(t, foldCase("Çalıkuşu"), foldCase("ÇALIKUŞU"))
	assert.Equal(t, "istanbul", foldCase("İstanbul"))
	assert.Equal(t, "öl", foldCase("ÖL"))
	assert.Equal(t, "dune", foldCase("Dune"))
}

func TestParseStatusFilter(t *testing.T) {
	for in, want := range map[string]StatusFilter{
		"":          FilterAll,
		"all":       FilterAll,
		"available": FilterAvailable,
		"on-loan":   FilterOnLoan,
		"on_loan":   FilterOnLoan,
	} {
		got, err := ParseStatusFilter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStatusFilter("borrowed")
	assert.Error(t, err)
}
