package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-lending/library"
)

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, s)
	}
	return id, nil
}

func newBookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Add, edit, delete and search books",
	}
	cmd.AddCommand(
		newBookAddCmd(a),
		newBookEditCmd(a),
		newBookDeleteCmd(a),
		newBookGetCmd(a),
		newBookListCmd(a),
		newBookSearchCmd(a),
	)
	return cmd
}

func bindBookFlags(cmd *cobra.Command, req *library.BookRequest) {
	f := cmd.Flags()
	f.StringVar(&req.ISBN, "isbn", "", "ISBN")
	f.StringVar(&req.Title, "title", "", "title")
	f.StringVar(&req.Author, "author", "", "author")
	f.StringVar(&req.Publisher, "publisher", "", "publisher")
	f.IntVar(&req.PublicationYear, "year", 0, "publication year")
	f.IntVar(&req.PageCount, "pages", 0, "page count")
	f.StringVar(&req.Genre, "genre", "", "genre")
}

func newBookAddCmd(a *app) *cobra.Command {
	var req library.BookRequest
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			book, err := a.mgr.Catalog.AddBook(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added book ID %d: %s\n", book.ID, book.Title)
			return nil
		},
	}
	bindBookFlags(cmd, &req)
	return cmd
}

// Edit starts from the stored book, so only the flags given change.
func newBookEditCmd(a *app) *cobra.Command {
	var req library.BookRequest
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a book's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			current, err := a.mgr.Catalog.GetBook(cmd.Context(), id)
			if err != nil {
				return err
			}

			f := cmd.Flags()
			merged := library.BookRequest{
				ISBN:            pick(f.Changed("isbn"), req.ISBN, current.ISBN),
				Title:           pick(f.Changed("title"), req.Title, current.Title),
				Author:          pick(f.Changed("author"), req.Author, current.Author),
				Publisher:       pick(f.Changed("publisher"), req.Publisher, current.Publisher),
				PublicationYear: pick(f.Changed("year"), req.PublicationYear, current.PublicationYear),
				PageCount:       pick(f.Changed("pages"), req.PageCount, current.PageCount),
				Genre:           pick(f.Changed("genre"), req.Genre, current.Genre),
			}
			book, err := a.mgr.Catalog.EditBook(cmd.Context(), id, merged)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated book ID %d.\n", book.ID)
			return nil
		},
	}
	bindBookFlags(cmd, &req)
	return cmd
}

func pick[T any](changed bool, flag, current T) T {
	if changed {
		return flag
	}
	return current
}

func newBookDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a book that has never been lent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			if err := a.mgr.Catalog.DeleteBook(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted book ID %d.\n", id)
			return nil
		},
	}
}

func newBookGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			book, err := a.mgr.Catalog.GetBook(cmd.Context(), id)
			if err != nil {
				return err
			}
			printBook(cmd.OutOrStdout(), book)
			return nil
		},
	}
}

func newBookListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			books, err := a.mgr.Catalog.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			printBooks(cmd.OutOrStdout(), books)
			return nil
		},
	}
}

func newBookSearchCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "search [TERM...]",
		Short: "Search title, author, publisher and genre",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := library.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			books, err := a.mgr.Catalog.Search(cmd.Context(), strings.Join(args, " "), filter)
			if err != nil {
				return err
			}
			printBooks(cmd.OutOrStdout(), books)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "all", "all, available or on-loan")
	return cmd
}
