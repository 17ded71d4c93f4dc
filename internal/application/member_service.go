package application

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
)

// MemberRepository captures the persistence operations needed by the member service.
type MemberRepository interface {
	CreateMember(ctx context.Context, credentials MemberCredentials) (Member, error)
	GetMember(ctx context.Context, id string) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
}

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

// MemberService orchestrates validation, authorization, and persistence for members.
type MemberService struct {
	members      MemberRepository
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
}

// NewMemberService wires dependencies for the member service.
func NewMemberService(members MemberRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time) *MemberService {
	if hash == nil {
		hash = func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &MemberService{members: members, hashPassword: hash, idGenerator: idGenerator, now: now}
}

// CreateMember validates input and persists a new member for administrators.
func (s *MemberService) CreateMember(ctx context.Context, params CreateMemberParams) (Member, error) {
	if s == nil {
		return Member{}, fmt.Errorf("MemberService is nil")
	}
	if !params.Principal.IsAdmin {
		return Member{}, ErrUnauthorized
	}
	if s.members == nil {
		return Member{}, fmt.Errorf("member repository not configured")
	}

	normalized := normalizeMemberInput(params.Input)
	vErr := validateMemberInput(normalized)
	if vErr.HasErrors() {
		return Member{}, vErr
	}

	hash, err := s.hashPassword(normalized.Password)
	if err != nil {
		return Member{}, fmt.Errorf("hash password: %w", err)
	}

	member := Member{
		ID:          s.idGenerator(),
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		IsAdmin:     normalized.IsAdmin,
		CreatedAt:   s.now(),
	}
	member.UpdatedAt = member.CreatedAt

	persisted, err := s.members.CreateMember(ctx, MemberCredentials{Member: member, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			vErr := &ValidationError{}
			vErr.add("email", "email is already registered")
			return Member{}, vErr
		}
		return Member{}, err
	}

	return persisted, nil
}

// GetMember returns a single member visible to any authenticated principal.
func (s *MemberService) GetMember(ctx context.Context, principal Principal, id string) (Member, error) {
	if s == nil || s.members == nil {
		return Member{}, fmt.Errorf("member repository not configured")
	}
	if principal.MemberID == "" {
		return Member{}, ErrUnauthorized
	}
	member, err := s.members.GetMember(ctx, id)
	if err != nil {
		return Member{}, mapRepoError(err)
	}
	return member, nil
}

// ListMembers returns all members sorted by display name.
func (s *MemberService) ListMembers(ctx context.Context, principal Principal) ([]Member, error) {
	if s == nil || s.members == nil {
		return nil, fmt.Errorf("member repository not configured")
	}
	if principal.MemberID == "" {
		return nil, ErrUnauthorized
	}
	members, err := s.members.ListMembers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].DisplayName == members[j].DisplayName {
			return members[i].ID < members[j].ID
		}
		return members[i].DisplayName < members[j].DisplayName
	})
	return members, nil
}

func normalizeMemberInput(input MemberInput) MemberInput {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	return input
}

func validateMemberInput(input MemberInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is not a valid address")
	}
	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}
	if len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	return vErr
}
