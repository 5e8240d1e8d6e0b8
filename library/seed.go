package library

import (
	"context"

	"go.uber.org/zap"
)

var demoBooks = []Book{
	{ISBN: "123456789", Title: "Example Book 1", Author: "John Doe", Publisher: "Publisher A",
		PublicationYear: 2020, PageCount: 200, Genre: "Fiction", Status: StatusAvailable},
	{ISBN: "987654321", Title: "Example Book 2", Author: "Jane Smith", Publisher: "Publisher B",
		PublicationYear: 2018, PageCount: 250, Genre: "Science", Status: StatusAvailable},
}

var demoMembers = []Member{
	{FullName: "Alice Brown", MembershipType: MembershipStandard, ContactInfo: "alice@example.com"},
	{FullName: "Bob Green", MembershipType: MembershipPremium, ContactInfo: "bob@example.com"},
}

// SeedDemoData fills an empty books table and an empty members table with
// sample rows so a fresh install has something to show. Tables that already
// hold rows are left alone.
func (d *Database) SeedDemoData(ctx context.Context, today Date) error {
	return d.WithTx(ctx, func(r *Repo) error {
		nBooks, err := r.CountBooks(ctx, nil)
		if err != nil {
			return err
		}
		if nBooks == 0 {
			for _, b := range demoBooks {
				if _, err := r.InsertBook(ctx, &b); err != nil {
					return err
				}
			}
			d.log.Info("seeded demo books", zap.Int("count", len(demoBooks)))
		}

		nMembers, err := r.CountMembers(ctx, nil)
		if err != nil {
			return err
		}
		if nMembers == 0 {
			for _, m := range demoMembers {
				m.RegistrationDate = today
				if _, err := r.InsertMember(ctx, &m); err != nil {
					return err
				}
			}
			d.log.Info("seeded demo members", zap.Int("count", len(demoMembers)))
		}
		return nil
	})
}
