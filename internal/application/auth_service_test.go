package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

type credentialStoreStub struct {
	credentials MemberCredentials
	err         error
}

func (s *credentialStoreStub) GetMemberCredentialsByEmail(ctx context.Context, email string) (MemberCredentials, error) {
	if s.err != nil {
		return MemberCredentials{}, s.err
	}
	if s.credentials.Member.Email != email {
		return MemberCredentials{}, ErrNotFound
	}
	return s.credentials, nil
}

func (s *credentialStoreStub) GetMember(ctx context.Context, id string) (Member, error) {
	if s.err != nil {
		return Member{}, s.err
	}
	if s.credentials.Member.ID != id {
		return Member{}, ErrNotFound
	}
	return s.credentials.Member, nil
}

type sessionRepoStub struct {
	sessions map[string]Session
	swept    int
	err      error
}

func newSessionRepoStub() *sessionRepoStub {
	return &sessionRepoStub{sessions: make(map[string]Session)}
}

func (s *sessionRepoStub) CreateSession(ctx context.Context, session Session) (Session, error) {
	if s.err != nil {
		return Session{}, s.err
	}
	s.sessions[session.Token] = session
	return session, nil
}

func (s *sessionRepoStub) GetSession(ctx context.Context, token string) (Session, error) {
	if s.err != nil {
		return Session{}, s.err
	}
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (s *sessionRepoStub) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error) {
	if s.err != nil {
		return Session{}, s.err
	}
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return session, nil
}

func (s *sessionRepoStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.swept++
	for token, session := range s.sessions {
		if session.ExpiresAt.Before(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

func acceptPassword(hashedPassword, password string) error {
	if hashedPassword == "hash:"+password {
		return nil
	}
	return ErrInvalidCredentials
}

func testCredentials(email string, disabled bool) MemberCredentials {
	return MemberCredentials{
		Member: Member{
			ID:          "member-1",
			Email:       email,
			DisplayName: "Member One",
		},
		PasswordHash: "hash:s3cret-pass",
		Disabled:     disabled,
	}
}

func newTestAuthService(t *testing.T, credentials CredentialStore, sessions SessionRepository) *AuthService {
	t.Helper()
	now := mondayMorning(t)
	return NewAuthService(credentials, sessions, acceptPassword, sequentialIDs("token"), func() time.Time { return now }, time.Hour)
}

func TestAuthService_Authenticate_IssuesSession(t *testing.T) {
	t.Parallel()

	sessions := newSessionRepoStub()
	svc := newTestAuthService(t, &credentialStoreStub{credentials: testCredentials("member@example.com", false)}, sessions)

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    " Member@Example.com ",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if result.Member.ID != "member-1" {
		t.Fatalf("expected member-1, got %s", result.Member.ID)
	}
	if result.Session.Token == "" {
		t.Fatal("expected a session token")
	}
	if !result.Session.ExpiresAt.Equal(mondayMorning(t).Add(time.Hour)) {
		t.Fatalf("expected one hour TTL, got %v", result.Session.ExpiresAt)
	}
	if sessions.swept != 1 {
		t.Fatalf("expected expired sessions swept before issuing, got %d sweeps", sessions.swept)
	}
}

func TestAuthService_Authenticate_RejectsUnknownEmail(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t, &credentialStoreStub{credentials: testCredentials("member@example.com", false)}, newSessionRepoStub())

	_, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "stranger@example.com",
		Password: "s3cret-pass",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Authenticate_RejectsWrongPassword(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t, &credentialStoreStub{credentials: testCredentials("member@example.com", false)}, newSessionRepoStub())

	_, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "member@example.com",
		Password: "wrong",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Authenticate_RejectsDisabledAccount(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t, &credentialStoreStub{credentials: testCredentials("member@example.com", true)}, newSessionRepoStub())

	_, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "member@example.com",
		Password: "s3cret-pass",
	})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestAuthService_ResolveSession_ReturnsPrincipal(t *testing.T) {
	t.Parallel()

	credentials := testCredentials("member@example.com", false)
	credentials.Member.IsAdmin = true
	sessions := newSessionRepoStub()
	svc := newTestAuthService(t, &credentialStoreStub{credentials: credentials}, sessions)

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "member@example.com",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	principal, err := svc.ResolveSession(context.Background(), result.Session.Token)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if principal.MemberID != "member-1" || !principal.IsAdmin {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestAuthService_ResolveSession_RejectsExpiredAndRevoked(t *testing.T) {
	t.Parallel()

	now := mondayMorning(t)
	revokedAt := now.Add(-time.Minute)
	sessions := newSessionRepoStub()
	sessions.sessions["expired"] = Session{ID: "s1", MemberID: "member-1", Token: "expired", ExpiresAt: now.Add(-time.Hour)}
	sessions.sessions["revoked"] = Session{ID: "s2", MemberID: "member-1", Token: "revoked", ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}

	svc := newTestAuthService(t, &credentialStoreStub{credentials: testCredentials("member@example.com", false)}, sessions)

	for _, token := range []string{"expired", "revoked", "missing"} {
		if _, err := svc.ResolveSession(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("token %s: expected ErrUnauthorized, got %v", token, err)
		}
	}
}

func TestAuthService_RevokeSession_IsIdempotent(t *testing.T) {
	t.Parallel()

	sessions := newSessionRepoStub()
	svc := newTestAuthService(t, &credentialStoreStub{credentials: testCredentials("member@example.com", false)}, sessions)

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "member@example.com",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if err := svc.RevokeSession(context.Background(), result.Session.Token); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := svc.RevokeSession(context.Background(), result.Session.Token); err != nil {
		t.Fatalf("expected revoking twice to succeed, got %v", err)
	}
	if err := svc.RevokeSession(context.Background(), "missing"); err != nil {
		t.Fatalf("expected revoking an unknown token to succeed, got %v", err)
	}
}
