package library

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Membership enforces member rules on top of the store.
type Membership struct {
	db       *Database
	validate *validator.Validate
	log      *zap.Logger
}

func NewMembership(db *Database, log *zap.Logger) *Membership {
	return &Membership{
		db:       db,
		validate: newValidator(),
		log:      log.Named("membership"),
	}
}

func (m *Membership) AddMember(ctx context.Context, req MemberRequest) (*Member, error) {
	req = trimMemberRequest(req)
	if err := validateRequest(m.validate, req); err != nil {
		return nil, err
	}

	member := memberFromRequest(req)
	if _, err := m.db.InsertMember(ctx, member); err != nil {
		return nil, err
	}

	m.log.Info("member added", zap.Int64("id", member.ID))
	return member, nil
}

// EditMember replaces every field of the member.
func (m *Membership) EditMember(ctx context.Context, id int64, req MemberRequest) (*Member, error) {
	req = trimMemberRequest(req)
	if err := validateRequest(m.validate, req); err != nil {
		return nil, err
	}

	member := memberFromRequest(req)
	member.ID = id
	if err := m.db.UpdateMember(ctx, member); err != nil {
		return nil, err
	}

	m.log.Info("member edited", zap.Int64("id", id))
	return member, nil
}

// DeleteMember removes a member who has never borrowed a book.
func (m *Membership) DeleteMember(ctx context.Context, id int64) error {
	err := m.db.WithTx(ctx, func(r *Repo) error {
		if _, err := r.GetMember(ctx, id); err != nil {
			return err
		}
		n, err := r.CountLendings(ctx, sq.Eq{"member_id": id})
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.Wrapf(ErrMemberHasLoans, "member %d has %d lending(s)", id, n)
		}
		return r.DeleteMember(ctx, id)
	})
	if err != nil {
		return err
	}

	m.log.Info("member deleted", zap.Int64("id", id))
	return nil
}

func (m *Membership) GetMember(ctx context.Context, id int64) (*Member, error) {
	return m.db.GetMember(ctx, id)
}

func (m *Membership) ListAll(ctx context.Context) ([]*Member, error) {
	return m.db.QueryMembers(ctx, nil)
}

func memberFromRequest(req MemberRequest) *Member {
	return &Member{
		FullName:         req.FullName,
		MembershipType:   req.MembershipType,
		RegistrationDate: req.RegistrationDate,
		ContactInfo:      req.ContactInfo,
	}
}
