package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"), zap.NewNop(), time.Second)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleBook(isbn, title string) *Book {
	return &Book{
		ISBN:            isbn,
		Title:           title,
		Author:          "Author",
		Publisher:       "Publisher",
		PublicationYear: 2001,
		PageCount:       100,
		Genre:           "Fiction",
	}
}

func sampleMember(name string) *Member {
	return &Member{
		FullName:         name,
		MembershipType:   MembershipStandard,
		RegistrationDate: NewDate(2024, time.January, 2),
		ContactInfo:      name + "@example.com",
	}
}

func TestBookRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	b := sampleBook("111", "Dune")
	id, err := db.InsertBook(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, id, b.ID)
	assert.Equal(t, StatusAvailable, b.Status)

	got, err := db.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	got.Title = "Dune Messiah"
	got.Status = StatusOnLoan
	require.NoError(t, db.UpdateBook(ctx, got))

	again, err := db.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", again.Title)
	assert.Equal(t, StatusOnLoan, again.Status)
}

func TestMemberDateRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	m := sampleMember("Alice")
	_, err := db.InsertMember(ctx, m)
	require.NoError(t, err)

	got, err := db.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", got.RegistrationDate.String())
	assert.True(t, m.RegistrationDate.Equal(got.RegistrationDate.Time))
}

func TestMissingRecords(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	_, err := db.GetBook(ctx, 42)
	assert.True(t, IsNotFound(err, KindBook))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetMember(ctx, 42)
	assert.True(t, IsNotFound(err, KindMember))

	_, err = db.GetLending(ctx, 42)
	assert.True(t, IsNotFound(err, KindLending))

	assert.True(t, IsNotFound(db.UpdateBook(ctx, &Book{ID: 42, Status: StatusAvailable}), KindBook))
	assert.True(t, IsNotFound(db.DeleteMember(ctx, 42), KindMember))
	assert.True(t, IsNotFound(db.SetBookStatus(ctx, 42, StatusOnLoan), KindBook))
}

func TestQueryBooksOrderedByID(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	for _, title := range []string{"C", "A", "B"} {
		_, err := db.InsertBook(ctx, sampleBook("isbn-"+title, title))
		require.NoError(t, err)
	}

	all, err := db.QueryBooks(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	some, err := db.QueryBooks(ctx, sq.Eq{"title": []string{"A", "C"}})
	require.NoError(t, err)
	assert.Len(t, some, 2)

	n, err := db.CountBooks(ctx, sq.Eq{"isbn": "isbn-B"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSchemaRejectsSecondOpenLending(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	b := sampleBook("1", "One")
	_, err := db.InsertBook(ctx, b)
	require.NoError(t, err)
	m := sampleMember("Alice")
	_, err = db.InsertMember(ctx, m)
	require.NoError(t, err)

	l := &Lending{BookID: b.ID, MemberID: m.ID, LendingDate: NewDate(2024, 1, 1), DueDate: NewDate(2024, 1, 15)}
	_, err = db.InsertLending(ctx, l)
	require.NoError(t, err)

	dup := *l
	_, err = db.InsertLending(ctx, &dup)
	assert.ErrorIs(t, err, ErrBookNotAvailable)

	// Once returned, the book may be lent again.
	require.NoError(t, db.MarkReturned(ctx, l.ID))
	again := *l
	_, err = db.InsertLending(ctx, &again)
	assert.NoError(t, err)
}

func TestMarkReturnedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	b := sampleBook("1", "One")
	_, _ = db.InsertBook(ctx, b)
	m := sampleMember("Alice")
	_, _ = db.InsertMember(ctx, m)
	l := &Lending{BookID: b.ID, MemberID: m.ID, LendingDate: NewDate(2024, 1, 1), DueDate: NewDate(2024, 1, 15)}
	_, err := db.InsertLending(ctx, l)
	require.NoError(t, err)

	require.NoError(t, db.MarkReturned(ctx, l.ID))
	assert.ErrorIs(t, db.MarkReturned(ctx, l.ID), ErrAlreadyReturned)

	got, err := db.GetLending(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.Returned)
	assert.False(t, got.Open())
}

func TestForeignKeysBlockDeletes(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	b := sampleBook("1", "One")
	_, _ = db.InsertBook(ctx, b)
	m := sampleMember("Alice")
	_, _ = db.InsertMember(ctx, m)
	l := &Lending{BookID: b.ID, MemberID: m.ID, LendingDate: NewDate(2024, 1, 1), DueDate: NewDate(2024, 1, 15)}
	_, err := db.InsertLending(ctx, l)
	require.NoError(t, err)

	assert.ErrorIs(t, db.DeleteBook(ctx, b.ID), ErrBookOnLoan)
	assert.ErrorIs(t, db.DeleteMember(ctx, m.ID), ErrMemberHasLoans)

	_, err = db.InsertLending(ctx, &Lending{BookID: 999, MemberID: m.ID,
		LendingDate: NewDate(2024, 1, 1), DueDate: NewDate(2024, 1, 15)})
	var se *StoreError
	assert.True(t, errors.As(err, &se), "dangling book id: %v", err)
}

func TestSchemaRejectsBadDateRange(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	b := sampleBook("1", "One")
	_, _ = db.InsertBook(ctx, b)
	m := sampleMember("Alice")
	_, _ = db.InsertMember(ctx, m)

	_, err := db.InsertLending(ctx, &Lending{BookID: b.ID, MemberID: m.ID,
		LendingDate: NewDate(2024, 1, 15), DueDate: NewDate(2024, 1, 15)})
	assert.Error(t, err)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(r *Repo) error {
		if _, err := r.InsertBook(ctx, sampleBook("1", "One")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := db.CountBooks(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCountLendingsByBook(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	b1, b2 := sampleBook("1", "One"), sampleBook("2", "Two")
	_, _ = db.InsertBook(ctx, b1)
	_, _ = db.InsertBook(ctx, b2)
	m := sampleMember("Alice")
	_, _ = db.InsertMember(ctx, m)

	for i := 0; i < 3; i++ {
		l := &Lending{BookID: b1.ID, MemberID: m.ID, LendingDate: NewDate(2024, 1, 1), DueDate: NewDate(2024, 1, 15)}
		_, err := db.InsertLending(ctx, l)
		require.NoError(t, err)
		require.NoError(t, db.MarkReturned(ctx, l.ID))
	}

	counts, err := db.CountLendingsByBook(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{b1.ID: 3}, counts)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "lib.db")

	db, err := NewDatabase(path, zap.NewNop(), 0)
	require.NoError(t, err)
	_, err = db.InsertBook(ctx, sampleBook("1", "One"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDatabase(path, zap.NewNop(), 0)
	require.NoError(t, err)
	defer db.Close()

	books, err := db.QueryBooks(ctx, nil)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "One", books[0].Title)
}

func TestSeedDemoDataOnlyFillsEmptyTables(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	today := NewDate(2024, time.March, 1)

	_, err := db.InsertMember(ctx, sampleMember("Existing"))
	require.NoError(t, err)

	require.NoError(t, db.SeedDemoData(ctx, today))

	books, err := db.QueryBooks(ctx, nil)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "123456789", books[0].ISBN)
	assert.Equal(t, "Example Book 2", books[1].Title)

	members, err := db.QueryMembers(ctx, nil)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Existing", members[0].FullName)

	// A second run adds nothing.
	require.NoError(t, db.SeedDemoData(ctx, today))
	n, err := db.CountBooks(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
