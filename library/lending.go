package library

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Circulation drives the book state machine: lending moves a book from
// available to on loan, returning moves it back. Each transition runs in one
// transaction together with the lending row it writes.
type Circulation struct {
	db       *Database
	validate *validator.Validate
	metrics  *Metrics
	log      *zap.Logger
}

func NewCirculation(db *Database, metrics *Metrics, log *zap.Logger) *Circulation {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Circulation{
		db:       db,
		validate: newValidator(),
		metrics:  metrics,
		log:      log.Named("circulation"),
	}
}

// Lend records a new open lending and marks the book on loan.
func (c *Circulation) Lend(ctx context.Context, req LendRequest) (*Lending, error) {
	lending, err := c.lend(ctx, req)
	if err != nil {
		c.metrics.failed("lend", err)
		return nil, err
	}

	c.metrics.lends.Inc()
	c.log.Info("book lent",
		zap.Int64("lending_id", lending.ID),
		zap.Int64("book_id", lending.BookID),
		zap.Int64("member_id", lending.MemberID),
		zap.Stringer("due", lending.DueDate))
	return lending, nil
}

func (c *Circulation) lend(ctx context.Context, req LendRequest) (*Lending, error) {
	if err := validateRequest(c.validate, req); err != nil {
		return nil, err
	}
	if !req.LendingDate.Before(req.DueDate) {
		return nil, errors.Wrapf(ErrInvalidDateRange, "lent %s, due %s", req.LendingDate, req.DueDate)
	}

	lending := &Lending{
		BookID:      req.BookID,
		MemberID:    req.MemberID,
		LendingDate: req.LendingDate,
		DueDate:     req.DueDate,
	}
	err := c.db.WithTx(ctx, func(r *Repo) error {
		book, err := r.GetBook(ctx, req.BookID)
		if err != nil {
			return err
		}
		if _, err := r.GetMember(ctx, req.MemberID); err != nil {
			return err
		}
		if book.Status != StatusAvailable {
			return errors.Wrapf(ErrBookNotAvailable, "book %d", book.ID)
		}
		if _, err := r.InsertLending(ctx, lending); err != nil {
			return err
		}
		return r.SetBookStatus(ctx, book.ID, StatusOnLoan)
	})
	if err != nil {
		return nil, err
	}
	return lending, nil
}

// ReturnLending closes the lending with the given id and makes its book
// available again.
func (c *Circulation) ReturnLending(ctx context.Context, id int64) (*Lending, error) {
	return c.complete(ctx, "return", func(r *Repo) (*Lending, error) {
		return r.GetLending(ctx, id)
	})
}

// ReturnByBookAndMember closes the open lending of bookID to memberID.
func (c *Circulation) ReturnByBookAndMember(ctx context.Context, bookID, memberID int64) (*Lending, error) {
	return c.complete(ctx, "return_by_book_member", func(r *Repo) (*Lending, error) {
		if _, err := r.GetBook(ctx, bookID); err != nil {
			return nil, err
		}
		if _, err := r.GetMember(ctx, memberID); err != nil {
			return nil, err
		}
		open, err := r.QueryLendings(ctx, sq.Eq{"book_id": bookID, "member_id": memberID, "returned": false})
		if err != nil {
			return nil, err
		}
		if len(open) == 0 {
			return nil, &NotFoundError{
				Kind: KindLending,
				Desc: fmt.Sprintf("no open lending of book %d to member %d", bookID, memberID),
			}
		}
		return open[0], nil
	})
}

func (c *Circulation) complete(ctx context.Context, op string, find func(r *Repo) (*Lending, error)) (*Lending, error) {
	var lending *Lending
	err := c.db.WithTx(ctx, func(r *Repo) error {
		l, err := find(r)
		if err != nil {
			return err
		}
		if !l.Open() {
			return errors.Wrapf(ErrAlreadyReturned, "lending %d", l.ID)
		}
		if err := r.MarkReturned(ctx, l.ID); err != nil {
			return err
		}
		if err := r.SetBookStatus(ctx, l.BookID, StatusAvailable); err != nil {
			return err
		}
		l.Returned = true
		lending = l
		return nil
	})
	if err != nil {
		c.metrics.failed(op, err)
		return nil, err
	}

	c.metrics.returns.Inc()
	c.log.Info("lending returned",
		zap.Int64("lending_id", lending.ID),
		zap.Int64("book_id", lending.BookID),
		zap.Int64("member_id", lending.MemberID))
	return lending, nil
}

func (c *Circulation) GetLending(ctx context.Context, id int64) (*Lending, error) {
	return c.db.GetLending(ctx, id)
}

// ListLendings returns every lending, or only the open ones.
func (c *Circulation) ListLendings(ctx context.Context, openOnly bool) ([]*Lending, error) {
	if openOnly {
		return c.db.QueryLendings(ctx, sq.Eq{"returned": false})
	}
	return c.db.QueryLendings(ctx, nil)
}

// ListOverdue returns every open lending regardless of its due date. Use
// ListPastDue when only lendings past their due date are wanted.
func (c *Circulation) ListOverdue(ctx context.Context) ([]*Lending, error) {
	return c.ListLendings(ctx, true)
}

// ListPastDue returns open lendings whose due date is before asOf.
func (c *Circulation) ListPastDue(ctx context.Context, asOf Date) ([]*Lending, error) {
	return c.db.QueryLendings(ctx, sq.And{
		sq.Eq{"returned": false},
		sq.Lt{"due_date": asOf},
	})
}

// BorrowCounts maps each lent book to the number of lendings ever recorded
// for it, returned ones included.
func (c *Circulation) BorrowCounts(ctx context.Context) (map[int64]int, error) {
	return c.db.CountLendingsByBook(ctx)
}

// MostBorrowed ranks lent books by borrow count, highest first. limit <= 0
// returns every lent book.
func (c *Circulation) MostBorrowed(ctx context.Context, limit int) ([]BorrowStat, error) {
	return c.borrowStats(ctx, true, limit)
}

// LeastBorrowed ranks lent books by borrow count, lowest first.
func (c *Circulation) LeastBorrowed(ctx context.Context, limit int) ([]BorrowStat, error) {
	return c.borrowStats(ctx, false, limit)
}

func (c *Circulation) borrowStats(ctx context.Context, desc bool, limit int) ([]BorrowStat, error) {
	counts, err := c.BorrowCounts(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	// Ties keep ascending id order.
	slices.Sort(ids)
	slices.SortStableFunc(ids, func(a, b int64) int {
		if desc {
			return cmp.Compare(counts[b], counts[a])
		}
		return cmp.Compare(counts[a], counts[b])
	})

	books, err := c.db.QueryBooks(ctx, sq.Eq{"id": ids})
	if err != nil {
		return nil, err
	}
	titles := make(map[int64]string, len(books))
	for _, b := range books {
		titles[b.ID] = b.Title
	}

	stats := make([]BorrowStat, 0, len(ids))
	for _, id := range ids {
		if limit > 0 && len(stats) == limit {
			break
		}
		title, ok := titles[id]
		if !ok {
			c.log.Warn("borrow count references a missing book",
				zap.Int64("book_id", id), zap.Int("count", counts[id]))
			continue
		}
		stats = append(stats, BorrowStat{BookID: id, Title: title, Count: counts[id]})
	}
	return stats, nil
}
