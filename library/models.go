package library

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// BookStatus is a book's availability flag. It is derived from whether the
// book has an open lending and only the lending workflow changes it.
type BookStatus string

const (
	StatusAvailable BookStatus = "available"
	StatusOnLoan    BookStatus = "on_loan"
)

// StatusFilter restricts catalog searches by availability.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterAvailable StatusFilter = "available"
	FilterOnLoan    StatusFilter = "on_loan"
)

// ParseStatusFilter accepts the filter names used on the command line.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch s {
	case "", "all":
		return FilterAll, nil
	case "available":
		return FilterAvailable, nil
	case "on_loan", "on-loan", "onloan":
		return FilterOnLoan, nil
	}
	return "", fmt.Errorf("unknown status filter %q (want all, available or on-loan)", s)
}

type MembershipType string

const (
	MembershipStandard MembershipType = "standard"
	MembershipPremium  MembershipType = "premium"
)

// Book represents catalog metadata and current availability of a book.
type Book struct {
	ID              int64      `db:"id" json:"id"`
	ISBN            string     `db:"isbn" json:"isbn"`
	Title           string     `db:"title" json:"title"`
	Author          string     `db:"author" json:"author"`
	Publisher       string     `db:"publisher" json:"publisher"`
	PublicationYear int        `db:"publication_year" json:"publicationYear"`
	PageCount       int        `db:"page_count" json:"pageCount"`
	Genre           string     `db:"genre" json:"genre"`
	Status          BookStatus `db:"status" json:"status"`
}

// Member represents a registered library member.
type Member struct {
	ID               int64          `db:"id" json:"id"`
	FullName         string         `db:"full_name" json:"fullName"`
	MembershipType   MembershipType `db:"membership_type" json:"membershipType"`
	RegistrationDate Date           `db:"registration_date" json:"registrationDate"`
	ContactInfo      string         `db:"contact_info" json:"contactInfo"`
}

// Lending records a book lent to a member. Only Returned ever changes, and
// only from false to true.
type Lending struct {
	ID          int64 `db:"id" json:"id"`
	BookID      int64 `db:"book_id" json:"bookId"`
	MemberID    int64 `db:"member_id" json:"memberId"`
	LendingDate Date  `db:"lending_date" json:"lendingDate"`
	DueDate     Date  `db:"due_date" json:"dueDate"`
	Returned    bool  `db:"returned" json:"returned"`
}

// Open reports whether the lending has not been returned yet.
func (l *Lending) Open() bool { return !l.Returned }

// BookRequest carries the user-editable fields of a book for add and edit.
type BookRequest struct {
	ISBN            string     `json:"isbn" validate:"required"`
	Title           string     `json:"title" validate:"required"`
	Author          string     `json:"author" validate:"required"`
	Publisher       string     `json:"publisher" validate:"required"`
	PublicationYear int        `json:"publicationYear" validate:"gt=0"`
	PageCount       int        `json:"pageCount" validate:"gt=0"`
	Genre           string     `json:"genre" validate:"required"`
	Status          BookStatus `json:"status" validate:"omitempty,oneof=available on_loan"`
}

type MemberRequest struct {
	FullName         string         `json:"fullName" validate:"required"`
	MembershipType   MembershipType `json:"membershipType" validate:"required,oneof=standard premium"`
	RegistrationDate Date           `json:"registrationDate" validate:"required"`
	ContactInfo      string         `json:"contactInfo" validate:"required"`
}

type LendRequest struct {
	BookID      int64 `json:"bookId" validate:"gt=0"`
	MemberID    int64 `json:"memberId" validate:"gt=0"`
	LendingDate Date  `json:"lendingDate" validate:"required"`
	DueDate     Date  `json:"dueDate" validate:"required"`
}

// BorrowStat is one row of the most/least borrowed reports.
type BorrowStat struct {
	BookID int64  `json:"bookId"`
	Title  string `json:"title"`
	Count  int    `json:"count"`
}

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day, stored as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date { return Date{d.Time.AddDate(0, 0, n)} }

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(dateLayout), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.parseStored(v)
	case []byte:
		return d.parseStored(string(v))
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

func (d *Date) parseStored(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
