package sqlite

import (
	"context"
	"strings"

	"github.com/example/activity-scheduler/internal/persistence"
)

// MemberRepository implements persistence.MemberRepository using SQLite.
type MemberRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMemberRepository creates a new SQLite member repository.
func NewMemberRepository(pool *ConnectionPool) *MemberRepository {
	return &MemberRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const memberColumns = "id, email, display_name, password_hash, is_admin, disabled, created_at, updated_at"

// CreateMember inserts a new member.
func (r *MemberRepository) CreateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" || member.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO members (` + memberColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		member.ID,
		normalizeEmail(member.Email),
		member.DisplayName,
		member.PasswordHash,
		member.IsAdmin,
		member.Disabled,
		encodeTime(member.CreatedAt),
		encodeTime(member.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateMember updates an existing member.
func (r *MemberRepository) UpdateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" || member.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE members
		SET email = ?, display_name = ?, password_hash = ?, is_admin = ?, disabled = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		normalizeEmail(member.Email),
		member.DisplayName,
		member.PasswordHash,
		member.IsAdmin,
		member.Disabled,
		encodeTime(member.UpdatedAt),
		member.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetMember retrieves a member by id.
func (r *MemberRepository) GetMember(ctx context.Context, id string) (persistence.Member, error) {
	if id == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, "SELECT "+memberColumns+" FROM members WHERE id = ?", id)
	return r.scanMember(row)
}

// GetMemberByEmail retrieves a member by normalized email.
func (r *MemberRepository) GetMemberByEmail(ctx context.Context, email string) (persistence.Member, error) {
	row := r.helper.QueryRow(ctx, "SELECT "+memberColumns+" FROM members WHERE email = ?", normalizeEmail(email))
	return r.scanMember(row)
}

// ListMembers returns all members ordered by creation time.
func (r *MemberRepository) ListMembers(ctx context.Context) ([]persistence.Member, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+memberColumns+" FROM members ORDER BY created_at, id")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var members []persistence.Member
	for rows.Next() {
		member, err := r.scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *MemberRepository) scanMember(row rowScanner) (persistence.Member, error) {
	var member persistence.Member
	var createdAt, updatedAt string
	err := row.Scan(
		&member.ID,
		&member.Email,
		&member.DisplayName,
		&member.PasswordHash,
		&member.IsAdmin,
		&member.Disabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Member{}, r.mapper.MapError(err)
	}
	if member.CreatedAt, err = decodeTime(createdAt); err != nil {
		return persistence.Member{}, err
	}
	if member.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return persistence.Member{}, err
	}
	return member, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
