package library

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// searchColumns are matched by Catalog.Search, any one of them suffices.
var searchColumns = []string{"title", "author", "publisher", "genre"}

// Catalog enforces book rules on top of the store.
type Catalog struct {
	db       *Database
	validate *validator.Validate
	log      *zap.Logger
}

func NewCatalog(db *Database, log *zap.Logger) *Catalog {
	return &Catalog{
		db:       db,
		validate: newValidator(),
		log:      log.Named("catalog"),
	}
}

// AddBook stores a new available book. The ISBN must not belong to any
// other book.
func (c *Catalog) AddBook(ctx context.Context, req BookRequest) (*Book, error) {
	req = trimBookRequest(req)
	if err := validateRequest(c.validate, req); err != nil {
		return nil, err
	}
	if req.Status == StatusOnLoan {
		return nil, fieldError("status", "eq=available")
	}

	book := bookFromRequest(req)
	book.Status = StatusAvailable
	err := c.db.WithTx(ctx, func(r *Repo) error {
		n, err := r.CountBooks(ctx, sq.Eq{"isbn": book.ISBN})
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.Wrapf(ErrDuplicateISBN, "isbn %s", book.ISBN)
		}
		_, err = r.InsertBook(ctx, book)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("book added", zap.Int64("id", book.ID), zap.String("isbn", book.ISBN))
	return book, nil
}

// EditBook replaces the descriptive fields of a book. The ISBN is not
// checked against other books here. Status belongs to the lending workflow,
// so a request may only repeat the current one.
func (c *Catalog) EditBook(ctx context.Context, id int64, req BookRequest) (*Book, error) {
	req = trimBookRequest(req)
	if err := validateRequest(c.validate, req); err != nil {
		return nil, err
	}

	var book *Book
	err := c.db.WithTx(ctx, func(r *Repo) error {
		current, err := r.GetBook(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != "" && req.Status != current.Status {
			return fieldError("status", "eq="+string(current.Status))
		}
		book = bookFromRequest(req)
		book.ID, book.Status = current.ID, current.Status
		return r.UpdateBook(ctx, book)
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("book edited", zap.Int64("id", id))
	return book, nil
}

// DeleteBook removes a book that has never been lent.
func (c *Catalog) DeleteBook(ctx context.Context, id int64) error {
	err := c.db.WithTx(ctx, func(r *Repo) error {
		if _, err := r.GetBook(ctx, id); err != nil {
			return err
		}
		n, err := r.CountLendings(ctx, sq.Eq{"book_id": id})
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.Wrapf(ErrBookOnLoan, "book %d has %d lending(s)", id, n)
		}
		return r.DeleteBook(ctx, id)
	})
	if err != nil {
		return err
	}

	c.log.Info("book deleted", zap.Int64("id", id))
	return nil
}

func (c *Catalog) GetBook(ctx context.Context, id int64) (*Book, error) {
	return c.db.GetBook(ctx, id)
}

func (c *Catalog) ListAll(ctx context.Context) ([]*Book, error) {
	return c.db.QueryBooks(ctx, nil)
}

// Search matches term case-insensitively as a substring of title, author,
// publisher or genre and keeps the books passing filter. An empty term
// matches every book.
func (c *Catalog) Search(ctx context.Context, term string, filter StatusFilter) ([]*Book, error) {
	var pred sq.And
	if t := strings.TrimSpace(term); t != "" {
		pattern := "%" + escapeLike(foldCase(t)) + "%"
		anyColumn := make(sq.Or, 0, len(searchColumns))
		for _, col := range searchColumns {
			anyColumn = append(anyColumn, sq.Expr("casefold("+col+") LIKE ? ESCAPE '\\'", pattern))
		}
		pred = append(pred, anyColumn)
	}

	switch filter {
	case FilterAll, "":
	case FilterAvailable:
		pred = append(pred, sq.Eq{"status": StatusAvailable})
	case FilterOnLoan:
		pred = append(pred, sq.Eq{"status": StatusOnLoan})
	default:
		return nil, fieldError("status", "oneof=all available on_loan")
	}

	if len(pred) == 0 {
		return c.db.QueryBooks(ctx, nil)
	}
	return c.db.QueryBooks(ctx, pred)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func bookFromRequest(req BookRequest) *Book {
	return &Book{
		ISBN:            req.ISBN,
		Title:           req.Title,
		Author:          req.Author,
		Publisher:       req.Publisher,
		PublicationYear: req.PublicationYear,
		PageCount:       req.PageCount,
		Genre:           req.Genre,
	}
}
