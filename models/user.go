package models

import (
	"crypto/rand"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/crypto/bcrypt"
)

const (
	// ErrTypeUserExists is returned when registering a name that is
	// already taken.
	ErrTypeUserExists = "user_exists"

	// ErrTypeUserNotFound is returned when the named user has no
	// account.
	ErrTypeUserNotFound = "user_not_found"

	// ErrTypeUserAuthFailed is returned on a wrong password.
	ErrTypeUserAuthFailed = "user_auth_failed"

	// ErrTypeUserBadName is returned when a user name cannot serve as
	// an account key.
	ErrTypeUserBadName = "user_bad_name"

	// generatedPasswordLength is the size of server-issued passwords.
	generatedPasswordLength = 16
)

// StabilityRun is one recorded measurement of a fingerprint surface.
type StabilityRun struct {
	Hash       string    `json:"hash"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SurfaceRecord tracks the stability history of one fingerprint
// surface for a user. The baseline is the hash every later run is
// compared against.
type SurfaceRecord struct {
	Baseline     string         `json:"baseline,omitempty"`
	Runs         []StabilityRun `json:"runs,omitempty"`
	MismatchRuns []int          `json:"mismatch_runs,omitempty"`
}

// User is one registered account with its fingerprint and stability
// history.
type User struct {
	Name         string                    `json:"name"`
	PasswordHash string                    `json:"password_hash"`
	CreatedAt    time.Time                 `json:"created_at"`
	Fingerprint  map[string]any            `json:"fingerprint,omitempty"`
	Surfaces     map[string]*SurfaceRecord `json:"surfaces,omitempty"`
}

// UserStore persists accounts as one JSON file per user under DataDir.
// Names resolve case-insensitively, so "Alice" and "alice" are the
// same account.
type UserStore struct {
	DataDir string

	// Now is the clock, replaceable in tests.
	Now func() time.Time

	mutex sync.Mutex
}

func (s *UserStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *UserStore) path(name string) string {
	return filepath.Join(s.DataDir, strings.ToLower(name)+".json")
}

func validateUserName(name string) error {
	if name == "" || len(name) > 64 {
		return errors.New("user name must be 1 to 64 characters").
			WithType(ErrTypeUserBadName)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return errors.New("user name carries unsupported characters").
				WithType(ErrTypeUserBadName).
				WithTag("name", name)
		}
	}
	return nil
}

// Register creates the account and returns the generated password. The
// password is shown once and only its bcrypt hash is stored.
func (s *UserStore) Register(name string) (string, error) {
	if err := validateUserName(name); err != nil {
		return "", err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := os.Stat(s.path(name)); err == nil {
		return "", errors.New("user already exists").
			WithType(ErrTypeUserExists).
			WithTag("name", name)
	}

	password, err := generatePassword()
	if err != nil {
		return "", errors.New("generating password failed").Wrap(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New("hashing password failed").Wrap(err)
	}

	u := &User{
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
		Surfaces:     make(map[string]*SurfaceRecord),
	}
	if err := s.saveLocked(u); err != nil {
		return "", err
	}

	instrumentUserRegistered()
	return password, nil
}

// Authenticate checks the password against the stored hash.
func (s *UserStore) Authenticate(name, password string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	u, err := s.loadLocked(name)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return errors.New("password does not match").
			WithType(ErrTypeUserAuthFailed).
			WithTag("name", name)
	}
	return nil
}

// Get returns the stored account.
func (s *UserStore) Get(name string) (*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.loadLocked(name)
}

// StoreFingerprint replaces the user's reported fingerprint payload.
func (s *UserStore) StoreFingerprint(name string, fingerprint map[string]any) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	u, err := s.loadLocked(name)
	if err != nil {
		return err
	}

	u.Fingerprint = fingerprint
	return s.saveLocked(u)
}

// RecordStability appends a run for the surface and compares it to the
// baseline. The baseline resolves in order: the stored one, then the
// client-reported one, then the first recorded hash. A mismatching run
// has its index remembered.
func (s *UserStore) RecordStability(name, surface, hash, clientBaseline string) (match bool, baseline string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	u, err := s.loadLocked(name)
	if err != nil {
		return false, "", err
	}

	if u.Surfaces == nil {
		u.Surfaces = make(map[string]*SurfaceRecord)
	}
	record, ok := u.Surfaces[surface]
	if !ok {
		record = &SurfaceRecord{}
		u.Surfaces[surface] = record
	}

	if record.Baseline == "" {
		if clientBaseline != "" {
			record.Baseline = clientBaseline
		} else {
			record.Baseline = hash
		}
	}

	record.Runs = append(record.Runs, StabilityRun{
		Hash:       hash,
		RecordedAt: s.now(),
	})

	match = hash == record.Baseline
	if !match {
		record.MismatchRuns = append(record.MismatchRuns, len(record.Runs)-1)
	}

	if err := s.saveLocked(u); err != nil {
		return false, "", err
	}
	return match, record.Baseline, nil
}

func (s *UserStore) loadLocked(name string) (*User, error) {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil, errors.New("user does not exist").
			WithType(ErrTypeUserNotFound).
			WithTag("name", name)
	}
	if err != nil {
		return nil, errors.New("reading user file failed").
			WithTag("name", name).
			Wrap(err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, errors.New("decoding user file failed").
			WithTag("name", name).
			Wrap(err)
	}
	return &u, nil
}

// saveLocked writes the account through a temp file and a rename so a
// crash never leaves a half-written account behind.
func (s *UserStore) saveLocked(u *User) error {
	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return errors.New("creating data directory failed").
			WithTag("dir", s.DataDir).
			Wrap(err)
	}

	data, err := json.Marshal(u)
	if err != nil {
		return errors.New("encoding user failed").
			WithTag("name", u.Name).
			Wrap(err)
	}

	path := s.path(u.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.New("writing user file failed").
			WithTag("name", u.Name).
			Wrap(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.New("replacing user file failed").
			WithTag("name", u.Name).
			Wrap(err)
	}
	return nil
}

var passwordClasses = []string{
	"abcdefghijklmnopqrstuvwxyz",
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"0123456789",
	"!@#$%^&*-_=+",
}

// generatePassword issues a random password carrying at least one
// character of every class.
func generatePassword() (string, error) {
	all := strings.Join(passwordClasses, "")

	chars := make([]byte, 0, generatedPasswordLength)
	for _, class := range passwordClasses {
		c, err := randomByte(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < generatedPasswordLength {
		c, err := randomByte(all)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher-Yates so the guaranteed classes are not pinned to the
	// front.
	for i := len(chars) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		k := int(j.Int64())
		chars[i], chars[k] = chars[k], chars[i]
	}
	return string(chars), nil
}

func randomByte(alphabet string) (byte, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[i.Int64()], nil
}
