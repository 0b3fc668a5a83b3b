package userstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.txt")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s, path
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Register("alice", "s3cret", true); err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := s.Authenticate("alice", "s3cret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.Username != "alice" || !u.Admin {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := s.Authenticate("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := s.Authenticate("bob", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Register("alice", "s3cret", false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Register("alice", "other", false); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Register("", "pw", false); err == nil {
		t.Fatal("expected error for empty username")
	}
	if err := s.Register("a,b", "pw", false); err == nil {
		t.Fatal("expected error for comma in username")
	}
	if err := s.Register("alice", "", false); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	s, path := newTestStore(t)

	if err := s.Register("alice", "s3cret", true); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Register("bob", "hunter2", false); err != nil {
		t.Fatalf("register: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Count() != 2 {
		t.Fatalf("expected 2 users after reopen, got %d", reopened.Count())
	}
	if u, err := reopened.Authenticate("bob", "hunter2"); err != nil || u.Admin {
		t.Fatalf("bob after reopen: user=%+v err=%v", u, err)
	}
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	content := "alice,$2a$10$notarealhashbutirrelevanthere,true\nbroken line\n\ncarol,$2a$10$alsonotreal,notabool\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected only the well-formed record, got %d", s.Count())
	}
	if !s.Exists("alice") {
		t.Fatal("expected alice to be loaded")
	}
}
