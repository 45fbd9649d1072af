package authstate

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles is the application-owned profile record store. It satisfies
// ProfileStore for the resolver and admin commands, plus the generic
// repository surface for everything else. Upsert restates the embedded
// signature so role coercion always runs; the string-keyed delete gets
// its own name since the embedded Delete takes a record.
type Profiles interface {
	repository.Repository[*Profile]

	GetByUserID(ctx context.Context, id string) (*Profile, error)
	GetByUserIDTx(ctx context.Context, tx bun.IDB, id string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)

	Upsert(ctx context.Context, record *Profile, criteria ...repository.UpdateCriteria) (*Profile, error)
	UpdateRole(ctx context.Context, id string, role UserRole) error
	Touch(ctx context.Context, id string, seenAt time.Time) error
	DeleteByUserID(ctx context.Context, id string) error
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var (
	_ Profiles     = (*profiles)(nil)
	_ ProfileStore = (*profiles)(nil)
)

// NewProfilesRepository wires the bun repository handlers for Profile.
func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (r *profiles) GetByUserID(ctx context.Context, id string) (*Profile, error) {
	return r.GetByUserIDTx(ctx, r.db, id)
}

func (r *profiles) GetByUserIDTx(ctx context.Context, tx bun.IDB, id string) (*Profile, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid profile id")
	}

	record := &Profile{}
	err = tx.NewSelect().
		Model(record).
		Where("prf.id = ?", uid).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, goerrors.New("profile not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"profile_id": id})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch profile")
	}

	return record, nil
}

func (r *profiles) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	record := &Profile{}
	err := r.db.NewSelect().
		Model(record).
		Where("prf.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, goerrors.New("profile not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"email": email})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch profile")
	}

	return record, nil
}

// Upsert inserts or replaces the profile keyed by id. Role is coerced so
// an out-of-enum value can never reach storage.
func (r *profiles) Upsert(ctx context.Context, record *Profile, criteria ...repository.UpdateCriteria) (*Profile, error) {
	if record == nil {
		return nil, goerrors.New("profile is nil", goerrors.CategoryBadInput)
	}

	record.EnsureRole()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	// Callers with update criteria go through the generic repository;
	// the common path uses one conflict upsert with a fixed column set.
	if len(criteria) > 0 {
		return r.Repository.Upsert(ctx, record, criteria...)
	}

	now := time.Now()
	record.UpdatedAt = &now

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("email = EXCLUDED.email").
		Set("user_role = EXCLUDED.user_role").
		Set("avatar = EXCLUDED.avatar").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to upsert profile")
	}

	return record, nil
}

func (r *profiles) UpdateRole(ctx context.Context, id string, role UserRole) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid profile id")
	}

	if _, ok := ParseRole(role); !ok {
		return goerrors.New("unknown role", goerrors.CategoryValidation).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": role})
	}

	res, err := r.db.NewUpdate().
		Model((*Profile)(nil)).
		Set("user_role = ?", role).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", uid).
		Where("deleted_at IS NULL").
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update role")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return goerrors.New("profile not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{"profile_id": id})
	}

	return nil
}

// Touch stamps the last-seen time. Callers treat failures as best-effort.
func (r *profiles) Touch(ctx context.Context, id string, seenAt time.Time) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid profile id")
	}

	_, err = r.db.NewUpdate().
		Model((*Profile)(nil)).
		Set("last_seen_at = ?", seenAt).
		Where("id = ?", uid).
		Where("deleted_at IS NULL").
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record last seen")
	}

	return nil
}

// DeleteByUserID soft-deletes the profile record.
func (r *profiles) DeleteByUserID(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid profile id")
	}

	_, err = r.db.NewDelete().
		Model((*Profile)(nil)).
		Where("id = ?", uid).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete profile")
	}

	return nil
}
