package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"library-lending/library"
)

func newLendCmd(a *app) *cobra.Command {
	var bookArg, memberArg, lent, due string
	cmd := &cobra.Command{
		Use:   "lend --book ID --member ID",
		Short: "Lend an available book to a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bookID, err := parseID(bookArg, "book")
			if err != nil {
				return err
			}
			memberID, err := parseID(memberArg, "member")
			if err != nil {
				return err
			}

			lendingDate := a.mgr.Today()
			if lent != "" {
				if lendingDate, err = library.ParseDate(lent); err != nil {
					return err
				}
			}
			dueDate := lendingDate.AddDays(a.cfg.LendingDays())
			if due != "" {
				if dueDate, err = library.ParseDate(due); err != nil {
					return err
				}
			}

			lending, err := a.mgr.Lending.Lend(cmd.Context(), library.LendRequest{
				BookID:      bookID,
				MemberID:    memberID,
				LendingDate: lendingDate,
				DueDate:     dueDate,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Lending ID %d: book %d lent to member %d, due %s.\n",
				lending.ID, lending.BookID, lending.MemberID, lending.DueDate)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&bookArg, "book", "", "book ID")
	f.StringVar(&memberArg, "member", "", "member ID")
	f.StringVar(&lent, "date", "", "lending date YYYY-MM-DD (default today)")
	f.StringVar(&due, "due", "", "due date YYYY-MM-DD (default lending date plus the lending period)")
	return cmd
}

func newReturnCmd(a *app) *cobra.Command {
	var bookArg, memberArg string
	cmd := &cobra.Command{
		Use:   "return [LENDING_ID | --book ID --member ID]",
		Short: "Mark a lending returned and make its book available",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				lending *library.Lending
				err     error
			)
			switch {
			case len(args) == 1:
				if bookArg != "" || memberArg != "" {
					return errors.New("give either a lending ID or --book and --member, not both")
				}
				id, perr := parseID(args[0], "lending")
				if perr != nil {
					return perr
				}
				lending, err = a.mgr.Lending.ReturnLending(cmd.Context(), id)
			case bookArg != "" && memberArg != "":
				bookID, perr := parseID(bookArg, "book")
				if perr != nil {
					return perr
				}
				memberID, perr := parseID(memberArg, "member")
				if perr != nil {
					return perr
				}
				lending, err = a.mgr.Lending.ReturnByBookAndMember(cmd.Context(), bookID, memberID)
			default:
				return errors.New("give a lending ID or both --book and --member")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Lending ID %d returned; book %d is available.\n", lending.ID, lending.BookID)
			return nil
		},
	}
	cmd.Flags().StringVar(&bookArg, "book", "", "book ID")
	cmd.Flags().StringVar(&memberArg, "member", "", "member ID")
	return cmd
}

func newLendingsCmd(a *app) *cobra.Command {
	var openOnly bool
	cmd := &cobra.Command{
		Use:   "lendings",
		Short: "List lendings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lendings, err := a.mgr.Lending.ListLendings(cmd.Context(), openOnly)
			if err != nil {
				return err
			}
			printLendings(cmd.OutOrStdout(), lendings)
			return nil
		},
	}
	cmd.Flags().BoolVar(&openOnly, "open", false, "only lendings not yet returned")
	return cmd
}

func newOverdueCmd(a *app) *cobra.Command {
	var pastDue bool
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List lendings not yet returned",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				lendings []*library.Lending
				err      error
			)
			if pastDue {
				lendings, err = a.mgr.Lending.ListPastDue(cmd.Context(), a.mgr.Today())
			} else {
				lendings, err = a.mgr.Lending.ListOverdue(cmd.Context())
			}
			if err != nil {
				return err
			}
			printLendings(cmd.OutOrStdout(), lendings)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pastDue, "past-due", false, "only lendings whose due date has passed")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:       "report most|least",
		Short:     "Rank books by how often they were lent",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"most", "least"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				stats []library.BorrowStat
				err   error
			)
			if args[0] == "most" {
				stats, err = a.mgr.Lending.MostBorrowed(cmd.Context(), limit)
			} else {
				stats, err = a.mgr.Lending.LeastBorrowed(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of books to show, 0 for all")
	return cmd
}

func newMetricsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show lending counters for this session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			families, err := a.reg.Gather()
			if err != nil {
				return err
			}
			printMetricFamilies(cmd.OutOrStdout(), families)
			return nil
		},
	}
}

func printMetricFamilies(w io.Writer, families []*dto.MetricFamily) {
	if len(families) == 0 {
		fmt.Fprintln(w, "No lending activity yet.")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), labelString(m), m.GetCounter().GetValue())
		}
	}
}

func labelString(m *dto.Metric) string {
	pairs := m.GetLabel()
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, lp := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
