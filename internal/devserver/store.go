package devserver

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

const codeTTL = 5 * time.Minute

type user struct {
	ID        string
	Phone     string
	Role      string
	IsActive  bool
	CreatedAt time.Time
}

type codeEntry struct {
	// Hash is the bcrypt hash of the verification code; the plaintext only
	// leaves the server through the debug_code field.
	Hash      []byte
	ExpiresAt time.Time
}

type chat struct {
	ID        int64
	StudentID string
	TeacherID string
}

// store holds all server-side state in memory. The dev server is a test
// double for the production API; nothing here needs to survive a restart.
type store struct {
	mu       sync.Mutex
	users    map[string]*user      // phone -> user
	usersByI map[string]*user      // id -> user
	codes    map[string]codeEntry  // phone -> pending code
	sessions map[string]string     // refresh token -> user id
	chats    map[int64]*chat       // chat id -> membership
	deals    map[int64]*domain.Deal
	logs     map[string][]domain.StatusLogEntry // deal id -> ordered entries
}

func newStore() *store {
	return &store{
		users:    make(map[string]*user),
		usersByI: make(map[string]*user),
		codes:    make(map[string]codeEntry),
		sessions: make(map[string]string),
		chats:    make(map[int64]*chat),
		deals:    make(map[int64]*domain.Deal),
		logs:     make(map[string][]domain.StatusLogEntry),
	}
}

// issueCode generates a 6-digit verification code for the phone and stores
// its hash. Returns the plaintext so debug mode can expose it.
func (s *store) issueCode(phone string, now time.Time) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.codes[phone] = codeEntry{Hash: hash, ExpiresAt: now.Add(codeTTL)}
	s.mu.Unlock()
	return code, nil
}

// verifyCode checks the code against the stored hash and consumes it. On
// success the user is created if unseen; isNew reports that case.
func (s *store) verifyCode(phone, code string, now time.Time) (*user, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[phone]
	if !ok || now.After(entry.ExpiresAt) {
		return nil, false, fmt.Errorf("verification code expired or not requested")
	}
	if bcrypt.CompareHashAndPassword(entry.Hash, []byte(code)) != nil {
		return nil, false, fmt.Errorf("invalid verification code")
	}
	delete(s.codes, phone)

	if u, ok := s.users[phone]; ok {
		return u, false, nil
	}
	u := &user{
		ID:        uuid.NewString(),
		Phone:     phone,
		Role:      domain.RoleStudent,
		IsActive:  true,
		CreatedAt: now,
	}
	s.users[phone] = u
	s.usersByI[u.ID] = u
	return u, true, nil
}

func (s *store) userByID(id string) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByI[id]
	return u, ok
}

func (s *store) createSession(userID string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = userID
	s.mu.Unlock()
	return token
}

// rotateSession consumes the old refresh token and issues a new one.
func (s *store) rotateSession(token string) (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.sessions[token]
	if !ok {
		return "", "", false
	}
	delete(s.sessions, token)
	next := uuid.NewString()
	s.sessions[next] = userID
	return next, userID, true
}

func (s *store) dropSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// SeedUser registers a user directly, bypassing the SMS flow. Test helper.
func (s *store) SeedUser(id, phone, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &user{ID: id, Phone: phone, Role: role, IsActive: true, CreatedAt: time.Now().UTC()}
	s.users[phone] = u
	s.usersByI[id] = u
}

// SeedChat registers a chat between two users so deals can be proposed on it.
func (s *store) SeedChat(chatID int64, studentID, teacherID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chatID] = &chat{ID: chatID, StudentID: studentID, TeacherID: teacherID}
}

func randomCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return fmt.Sprintf("%06d", n%1000000), nil
}
