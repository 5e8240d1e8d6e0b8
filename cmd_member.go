package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"library-lending/library"
)

func newMemberCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Add, edit, delete and list members",
	}
	cmd.AddCommand(
		newMemberAddCmd(a),
		newMemberEditCmd(a),
		newMemberDeleteCmd(a),
		newMemberGetCmd(a),
		newMemberListCmd(a),
	)
	return cmd
}

type memberFlags struct {
	name       string
	kind       string
	registered string
	contact    string
}

func (m *memberFlags) bind(cmd *cobra.Command, kindDefault string) {
	f := cmd.Flags()
	f.StringVar(&m.name, "name", "", "full name")
	f.StringVar(&m.kind, "type", kindDefault, "membership type: standard or premium")
	f.StringVar(&m.registered, "registered", "", "registration date YYYY-MM-DD (default today)")
	f.StringVar(&m.contact, "contact", "", "contact information")
}

func newMemberAddCmd(a *app) *cobra.Command {
	var mf memberFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registered := a.mgr.Today()
			if mf.registered != "" {
				d, err := library.ParseDate(mf.registered)
				if err != nil {
					return err
				}
				registered = d
			}
			member, err := a.mgr.Members.AddMember(cmd.Context(), library.MemberRequest{
				FullName:         mf.name,
				MembershipType:   library.MembershipType(mf.kind),
				RegistrationDate: registered,
				ContactInfo:      mf.contact,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added member ID %d: %s\n", member.ID, member.FullName)
			return nil
		},
	}
	mf.bind(cmd, string(library.MembershipStandard))
	return cmd
}

func newMemberEditCmd(a *app) *cobra.Command {
	var mf memberFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a member's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "member")
			if err != nil {
				return err
			}
			current, err := a.mgr.Members.GetMember(cmd.Context(), id)
			if err != nil {
				return err
			}

			f := cmd.Flags()
			req := library.MemberRequest{
				FullName:         pick(f.Changed("name"), mf.name, current.FullName),
				MembershipType:   pick(f.Changed("type"), library.MembershipType(mf.kind), current.MembershipType),
				RegistrationDate: current.RegistrationDate,
				ContactInfo:      pick(f.Changed("contact"), mf.contact, current.ContactInfo),
			}
			if f.Changed("registered") {
				if req.RegistrationDate, err = library.ParseDate(mf.registered); err != nil {
					return err
				}
			}
			member, err := a.mgr.Members.EditMember(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated member ID %d.\n", member.ID)
			return nil
		},
	}
	mf.bind(cmd, "")
	return cmd
}

func newMemberDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a member who has never borrowed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "member")
			if err != nil {
				return err
			}
			if err := a.mgr.Members.DeleteMember(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted member ID %d.\n", id)
			return nil
		},
	}
}

func newMemberGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "member")
			if err != nil {
				return err
			}
			member, err := a.mgr.Members.GetMember(cmd.Context(), id)
			if err != nil {
				return err
			}
			printMember(cmd.OutOrStdout(), member)
			return nil
		},
	}
}

func newMemberListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			members, err := a.mgr.Members.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			printMembers(cmd.OutOrStdout(), members)
			return nil
		},
	}
}
