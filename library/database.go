package library

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

const (
	booksTable    = "books"
	membersTable  = "members"
	lendingsTable = "lendings"

	defaultBusyTimeout = 5 * time.Second

	// driverName is go-sqlite3 with casefold() registered on every connection.
	driverName = "sqlite3_library"
)

var (
	bookColumns    = []string{"id", "isbn", "title", "author", "publisher", "publication_year", "page_count", "genre", "status"}
	memberColumns  = []string{"id", "full_name", "membership_type", "registration_date", "contact_info"}
	lendingColumns = []string{"id", "book_id", "member_id", "lending_date", "due_date", "returned"}
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("casefold", foldCase, true)
		},
	})
}

// dotlessI folds the Turkish dotted and dotless i onto plain i, so "I", "ı",
// "İ" and "i" all compare equal.
var dotlessI = strings.NewReplacer("ı", "i", "\u0307", "")

// foldCase is the Unicode case-insensitive search key. SQLite's LOWER only
// handles ASCII.
func foldCase(s string) string {
	return dotlessI.Replace(cases.Fold().String(s))
}

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// Database provides high-level helpers around a SQLite connection. The
// embedded Repo runs outside any transaction; WithTx hands out one bound to a
// transaction.
type Database struct {
	*Repo
	db  *sqlx.DB
	log *zap.Logger
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string, log *zap.Logger, busyTimeout time.Duration) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create db dir")
		}
	}

	// Immediate transactions take the write lock up front, so lend and return
	// never interleave between their read and their write.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_txlock=immediate",
		dbPath, busyTimeout.Milliseconds())
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	if err := applyMigrations(db.DB, log); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("database ready", zap.String("path", dbPath))
	return &Database{
		Repo: &Repo{ext: db, log: log},
		db:   db,
		log:  log,
	}, nil
}

// Close closes the DB.
func (d *Database) Close() error {
	return d.db.Close()
}

// WithTx runs fn inside a single transaction. Any error returned by fn rolls
// the transaction back.
func (d *Database) WithTx(ctx context.Context, fn func(r *Repo) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return d.storeErr("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&Repo{ext: tx, log: d.log}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return d.storeErr("commit", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

type gooseLogger struct {
	log *zap.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Fatal(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func applyMigrations(db *sql.DB, log *zap.Logger) error {
	// WAL lets readers proceed while a lend or return holds the write lock.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return errors.Wrap(err, "enable WAL")
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{log: log.Named("migrate")})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "set migration dialect")
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Record operations
// ---------------------------------------------------------------------------

// Repo performs single-statement record operations against either the
// connection pool or an open transaction.
type Repo struct {
	ext sqlx.ExtContext
	log *zap.Logger
}

func (r *Repo) storeErr(op string, err error) error {
	r.log.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return &StoreError{Op: op, Err: err}
}

func constraintCode(err error) (sqlite3.ErrNoExtended, bool) {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return se.ExtendedCode, true
	}
	return 0, false
}

// exec returns driver errors unwrapped so callers can inspect constraint
// codes before converting them.
func (r *Repo) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return r.ext.ExecContext(ctx, query, args...)
}

func (r *Repo) get(ctx context.Context, op string, dest any, kind Kind, id int64, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return r.storeErr(op, err)
	}
	if err := sqlx.GetContext(ctx, r.ext, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Kind: kind, ID: id}
		}
		return r.storeErr(op, err)
	}
	return nil
}

func (r *Repo) list(ctx context.Context, op string, dest any, b sq.SelectBuilder, pred sq.Sqlizer) error {
	if pred != nil {
		b = b.Where(pred)
	}
	query, args, err := b.OrderBy("id").ToSql()
	if err != nil {
		return r.storeErr(op, err)
	}
	if err := sqlx.SelectContext(ctx, r.ext, dest, query, args...); err != nil {
		return r.storeErr(op, err)
	}
	return nil
}

// affectOne converts a zero-row update or delete into a NotFoundError.
func (r *Repo) affectOne(op string, res sql.Result, kind Kind, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return r.storeErr(op, err)
	}
	if n == 0 {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func (r *Repo) count(ctx context.Context, op, table string, pred sq.Sqlizer) (int, error) {
	b := qb.Select("COUNT(*)").From(table)
	if pred != nil {
		b = b.Where(pred)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, r.storeErr(op, err)
	}
	var n int
	if err := sqlx.GetContext(ctx, r.ext, &n, query, args...); err != nil {
		return 0, r.storeErr(op, err)
	}
	return n, nil
}

// ------------------ Books ------------------

func (r *Repo) InsertBook(ctx context.Context, b *Book) (int64, error) {
	status := b.Status
	if status == "" {
		status = StatusAvailable
	}
	res, err := r.exec(ctx, qb.Insert(booksTable).
		Columns(bookColumns[1:]...).
		Values(b.ISBN, b.Title, b.Author, b.Publisher, b.PublicationYear, b.PageCount, b.Genre, status))
	if err != nil {
		return 0, r.storeErr("insert book", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, r.storeErr("insert book", err)
	}
	b.ID, b.Status = id, status
	return id, nil
}

func (r *Repo) GetBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	err := r.get(ctx, "get book", &b, KindBook, id,
		qb.Select(bookColumns...).From(booksTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBook replaces every column of the book row, status included.
func (r *Repo) UpdateBook(ctx context.Context, b *Book) error {
	res, err := r.exec(ctx, qb.Update(booksTable).
		SetMap(map[string]any{
			"isbn":             b.ISBN,
			"title":            b.Title,
			"author":           b.Author,
			"publisher":        b.Publisher,
			"publication_year": b.PublicationYear,
			"page_count":       b.PageCount,
			"genre":            b.Genre,
			"status":           b.Status,
		}).
		Where(sq.Eq{"id": b.ID}))
	if err != nil {
		return r.storeErr("update book", err)
	}
	return r.affectOne("update book", res, KindBook, b.ID)
}

func (r *Repo) SetBookStatus(ctx context.Context, id int64, status BookStatus) error {
	res, err := r.exec(ctx, qb.Update(booksTable).
		Set("status", status).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return r.storeErr("set book status", err)
	}
	return r.affectOne("set book status", res, KindBook, id)
}

func (r *Repo) DeleteBook(ctx context.Context, id int64) error {
	res, err := r.exec(ctx, qb.Delete(booksTable).Where(sq.Eq{"id": id}))
	if err != nil {
		if code, ok := constraintCode(err); ok && code == sqlite3.ErrConstraintForeignKey {
			return errors.Wrapf(ErrBookOnLoan, "book %d", id)
		}
		return r.storeErr("delete book", err)
	}
	return r.affectOne("delete book", res, KindBook, id)
}

// QueryBooks returns the books matching pred ordered by id; a nil pred
// matches every book.
func (r *Repo) QueryBooks(ctx context.Context, pred sq.Sqlizer) ([]*Book, error) {
	books := []*Book{}
	if err := r.list(ctx, "query books", &books, qb.Select(bookColumns...).From(booksTable), pred); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *Repo) CountBooks(ctx context.Context, pred sq.Sqlizer) (int, error) {
	return r.count(ctx, "count books", booksTable, pred)
}

// ------------------ Members ------------------

func (r *Repo) InsertMember(ctx context.Context, m *Member) (int64, error) {
	res, err := r.exec(ctx, qb.Insert(membersTable).
		Columns(memberColumns[1:]...).
		Values(m.FullName, m.MembershipType, m.RegistrationDate, m.ContactInfo))
	if err != nil {
		return 0, r.storeErr("insert member", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, r.storeErr("insert member", err)
	}
	m.ID = id
	return id, nil
}

func (r *Repo) GetMember(ctx context.Context, id int64) (*Member, error) {
	var m Member
	err := r.get(ctx, "get member", &m, KindMember, id,
		qb.Select(memberColumns...).From(membersTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) UpdateMember(ctx context.Context, m *Member) error {
	res, err := r.exec(ctx, qb.Update(membersTable).
		SetMap(map[string]any{
			"full_name":         m.FullName,
			"membership_type":   m.MembershipType,
			"registration_date": m.RegistrationDate,
			"contact_info":      m.ContactInfo,
		}).
		Where(sq.Eq{"id": m.ID}))
	if err != nil {
		return r.storeErr("update member", err)
	}
	return r.affectOne("update member", res, KindMember, m.ID)
}

func (r *Repo) DeleteMember(ctx context.Context, id int64) error {
	res, err := r.exec(ctx, qb.Delete(membersTable).Where(sq.Eq{"id": id}))
	if err != nil {
		if code, ok := constraintCode(err); ok && code == sqlite3.ErrConstraintForeignKey {
			return errors.Wrapf(ErrMemberHasLoans, "member %d", id)
		}
		return r.storeErr("delete member", err)
	}
	return r.affectOne("delete member", res, KindMember, id)
}

func (r *Repo) QueryMembers(ctx context.Context, pred sq.Sqlizer) ([]*Member, error) {
	members := []*Member{}
	if err := r.list(ctx, "query members", &members, qb.Select(memberColumns...).From(membersTable), pred); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *Repo) CountMembers(ctx context.Context, pred sq.Sqlizer) (int, error) {
	return r.count(ctx, "count members", membersTable, pred)
}

// ------------------ Lendings ------------------

// InsertLending stores a new open lending. A second open lending for the
// same book violates the partial unique index and yields ErrBookNotAvailable.
func (r *Repo) InsertLending(ctx context.Context, l *Lending) (int64, error) {
	res, err := r.exec(ctx, qb.Insert(lendingsTable).
		Columns(lendingColumns[1:]...).
		Values(l.BookID, l.MemberID, l.LendingDate, l.DueDate, l.Returned))
	if err != nil {
		if code, ok := constraintCode(err); ok && code == sqlite3.ErrConstraintUnique {
			return 0, errors.Wrapf(ErrBookNotAvailable, "book %d has an open lending", l.BookID)
		}
		return 0, r.storeErr("insert lending", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, r.storeErr("insert lending", err)
	}
	l.ID = id
	return id, nil
}

func (r *Repo) GetLending(ctx context.Context, id int64) (*Lending, error) {
	var l Lending
	err := r.get(ctx, "get lending", &l, KindLending, id,
		qb.Select(lendingColumns...).From(lendingsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// MarkReturned flips returned to true. It only matches open lendings, so a
// second call for the same id fails with ErrAlreadyReturned.
func (r *Repo) MarkReturned(ctx context.Context, id int64) error {
	res, err := r.exec(ctx, qb.Update(lendingsTable).
		Set("returned", true).
		Where(sq.Eq{"id": id, "returned": false}))
	if err != nil {
		return r.storeErr("mark returned", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.storeErr("mark returned", err)
	}
	if n == 0 {
		return errors.Wrapf(ErrAlreadyReturned, "lending %d", id)
	}
	return nil
}

func (r *Repo) QueryLendings(ctx context.Context, pred sq.Sqlizer) ([]*Lending, error) {
	lendings := []*Lending{}
	if err := r.list(ctx, "query lendings", &lendings, qb.Select(lendingColumns...).From(lendingsTable), pred); err != nil {
		return nil, err
	}
	return lendings, nil
}

func (r *Repo) CountLendings(ctx context.Context, pred sq.Sqlizer) (int, error) {
	return r.count(ctx, "count lendings", lendingsTable, pred)
}

// CountLendingsByBook returns how many lendings were ever recorded per book.
func (r *Repo) CountLendingsByBook(ctx context.Context) (map[int64]int, error) {
	query, args, err := qb.Select("book_id", "COUNT(*)").
		From(lendingsTable).
		GroupBy("book_id").
		ToSql()
	if err != nil {
		return nil, r.storeErr("count lendings by book", err)
	}
	rows, err := r.ext.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, r.storeErr("count lendings by book", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var bookID int64
		var n int
		if err := rows.Scan(&bookID, &n); err != nil {
			return nil, r.storeErr("count lendings by book", err)
		}
		counts[bookID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, r.storeErr("count lendings by book", err)
	}
	return counts, nil
}
