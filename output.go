package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"library-lending/library"
)

const defaultWidth = 100

// tableWidth is the terminal width when stdout is a terminal.
func tableWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w >= 60 {
		return w
	}
	return defaultWidth
}

func printBooks(w io.Writer, books []*library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}

	// id, isbn, year, status and gaps take about 50 columns
	col := (tableWidth() - 50) / 2
	col = max(col, 15)

	fmt.Fprintf(w, "%-5s %-14s %-*s %-*s %-5s %-10s\n", "ID", "ISBN", col, "Title", col, "Author", "Year", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 5+14+col*2+5+10+5))
	for _, b := range books {
		fmt.Fprintf(w, "%-5d %-14s %-*s %-*s %-5d %-10s\n",
			b.ID,
			truncateString(b.ISBN, 14),
			col, truncateString(b.Title, col),
			col, truncateString(b.Author, col),
			b.PublicationYear,
			statusLabel(b.Status))
	}
}

func printBook(w io.Writer, b *library.Book) {
	fmt.Fprintf(w, "ID:         %d\n", b.ID)
	fmt.Fprintf(w, "ISBN:       %s\n", b.ISBN)
	fmt.Fprintf(w, "Title:      %s\n", b.Title)
	fmt.Fprintf(w, "Author:     %s\n", b.Author)
	fmt.Fprintf(w, "Publisher:  %s\n", b.Publisher)
	fmt.Fprintf(w, "Year:       %d\n", b.PublicationYear)
	fmt.Fprintf(w, "Pages:      %d\n", b.PageCount)
	fmt.Fprintf(w, "Genre:      %s\n", b.Genre)
	fmt.Fprintf(w, "Status:     %s\n", statusLabel(b.Status))
}

func printMembers(w io.Writer, members []*library.Member) {
	if len(members) == 0 {
		fmt.Fprintln(w, "No members found.")
		return
	}

	col := max((tableWidth()-40)/2, 15)
	fmt.Fprintf(w, "%-5s %-*s %-9s %-11s %s\n", "ID", col, "Name", "Type", "Registered", "Contact")
	fmt.Fprintln(w, strings.Repeat("-", 5+col+9+11+col+4))
	for _, m := range members {
		fmt.Fprintf(w, "%-5d %-*s %-9s %-11s %s\n",
			m.ID,
			col, truncateString(m.FullName, col),
			m.MembershipType,
			m.RegistrationDate,
			truncateString(m.ContactInfo, col))
	}
}

func printMember(w io.Writer, m *library.Member) {
	fmt.Fprintf(w, "ID:         %d\n", m.ID)
	fmt.Fprintf(w, "Name:       %s\n", m.FullName)
	fmt.Fprintf(w, "Type:       %s\n", m.MembershipType)
	fmt.Fprintf(w, "Registered: %s\n", m.RegistrationDate)
	fmt.Fprintf(w, "Contact:    %s\n", m.ContactInfo)
}

func printLendings(w io.Writer, lendings []*library.Lending) {
	if len(lendings) == 0 {
		fmt.Fprintln(w, "No lendings found.")
		return
	}

	fmt.Fprintf(w, "%-5s %-6s %-7s %-11s %-11s %s\n", "ID", "Book", "Member", "Lent", "Due", "Returned")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, l := range lendings {
		returned := "No"
		if l.Returned {
			returned = "Yes"
		}
		fmt.Fprintf(w, "%-5d %-6d %-7d %-11s %-11s %s\n",
			l.ID, l.BookID, l.MemberID, l.LendingDate, l.DueDate, returned)
	}
}

func printStats(w io.Writer, stats []library.BorrowStat) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No books have been lent yet.")
		return
	}

	col := max(tableWidth()-20, 20)
	fmt.Fprintf(w, "%-5s %-*s %s\n", "ID", col, "Title", "Times")
	fmt.Fprintln(w, strings.Repeat("-", 5+col+7))
	for _, s := range stats {
		fmt.Fprintf(w, "%-5d %-*s %d\n", s.BookID, col, truncateString(s.Title, col), s.Count)
	}
}

func statusLabel(s library.BookStatus) string {
	if s == library.StatusOnLoan {
		return "On loan"
	}
	return "Available"
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}
