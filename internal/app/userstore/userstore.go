package userstore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/openpledge/sponsorships/pkg/logger"
)

var (
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials is returned on unknown users and wrong passwords
	// alike, so a caller cannot probe which usernames exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is an authenticated operator of the system.
type User struct {
	Username string
	Admin    bool
}

type record struct {
	hash  string
	admin bool
}

// Store keeps operator accounts in a flat file, one "username,hash,admin"
// line per account. Passwords are hashed with bcrypt. The whole file is
// loaded at open time and rewritten on every mutation; the expected account
// count is a handful of coordinators, not a user base.
type Store struct {
	mu    sync.RWMutex
	path  string
	users map[string]record
	log   *logger.Logger
}

// Open loads the user file at path, creating it when absent.
func Open(path string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewDefault("userstore")
	}
	s := &Store{path: path, users: make(map[string]record), log: log}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Register creates a new account with a bcrypt-hashed password.
func (s *Store) Register(username, password string, admin bool) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if strings.Contains(username, ",") {
		return fmt.Errorf("username must not contain a comma")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return ErrUsernameTaken
	}
	s.users[username] = record{hash: string(hash), admin: admin}
	if err := s.persistLocked(); err != nil {
		delete(s.users, username)
		return err
	}
	s.log.WithField("username", username).Info("user registered")
	return nil
}

// Authenticate checks the password for the username and returns the user.
func (s *Store) Authenticate(username, password string) (User, error) {
	s.mu.RLock()
	rec, ok := s.users[strings.TrimSpace(username)]
	s.mu.RUnlock()

	if !ok {
		// Burn comparable time so absent users are not distinguishable.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000uGZv1lO0WkGWJyn1sCIJgByBRuQpW1q"), []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return User{Username: strings.TrimSpace(username), Admin: rec.admin}, nil
}

// Exists reports whether the username is registered.
func (s *Store) Exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[strings.TrimSpace(username)]
	return ok
}

// Count returns the number of registered accounts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *Store) load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open user file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		parts := strings.Split(text, ",")
		if len(parts) != 3 {
			s.log.WithField("line", line).Warn("skipping malformed user record")
			continue
		}
		admin, err := strconv.ParseBool(strings.TrimSpace(parts[2]))
		if err != nil {
			s.log.WithField("line", line).Warn("skipping user record with bad admin flag")
			continue
		}
		s.users[strings.TrimSpace(parts[0])] = record{hash: strings.TrimSpace(parts[1]), admin: admin}
	}
	return scanner.Err()
}

func (s *Store) persistLocked() error {
	var b strings.Builder
	for username, rec := range s.users {
		fmt.Fprintf(&b, "%s,%s,%t\n", username, rec.hash, rec.admin)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write user file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace user file: %w", err)
	}
	return nil
}
