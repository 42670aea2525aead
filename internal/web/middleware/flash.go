package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-matcher/internal/constants"
)

const flashCookieName = "face_matcher_session"

// flashSession holds messages queued for the next page render of one browser.
type flashSession struct {
	messages  []string
	expiresAt time.Time
}

// FlashStore keeps one-shot notices between a redirect and the page that
// follows it. Browsers are identified by an HMAC-signed cookie; messages live
// in memory only.
type FlashStore struct {
	secret   []byte
	ttl      time.Duration
	sessions map[string]*flashSession
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFlashStore creates a flash store and starts its cleanup goroutine.
func NewFlashStore(secret string) *FlashStore {
	// Use a default secret if none provided (for development)
	if secret == "" {
		secret = "face-matcher-dev-secret-change-in-production"
	}
	fs := &FlashStore{
		secret:   []byte(secret),
		ttl:      constants.FlashTTL,
		sessions: make(map[string]*flashSession),
		stopCh:   make(chan struct{}),
	}
	go fs.cleanupLoop(constants.FlashCleanupInterval)
	return fs
}

// Add queues message for the browser behind r, issuing a session cookie on w
// when the browser does not have a valid one yet.
func (fs *FlashStore) Add(w http.ResponseWriter, r *http.Request, message string) {
	id := fs.sessionID(r)
	if id == "" {
		id = uuid.NewString()
		fs.setCookie(w, id)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, ok := fs.sessions[id]
	if !ok || time.Now().After(s.expiresAt) {
		s = &flashSession{}
		fs.sessions[id] = s
	}
	s.messages = append(s.messages, message)
	s.expiresAt = time.Now().Add(fs.ttl)
}

// Pop returns and clears the pending messages for the browser behind r.
func (fs *FlashStore) Pop(r *http.Request) []string {
	id := fs.sessionID(r)
	if id == "" {
		return nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, ok := fs.sessions[id]
	if !ok {
		return nil
	}
	delete(fs.sessions, id)
	if time.Now().After(s.expiresAt) {
		return nil
	}
	return s.messages
}

// Len returns the number of browsers with pending messages.
func (fs *FlashStore) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.sessions)
}

// Stop terminates the cleanup goroutine. It is safe to call more than once.
func (fs *FlashStore) Stop() {
	fs.stopOnce.Do(func() { close(fs.stopCh) })
}

func (fs *FlashStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fs.purgeExpired(time.Now())
		case <-fs.stopCh:
			return
		}
	}
}

func (fs *FlashStore) purgeExpired(now time.Time) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for id, s := range fs.sessions {
		if now.After(s.expiresAt) {
			delete(fs.sessions, id)
		}
	}
}

// sessionID returns the verified session ID from the request cookie, or "".
func (fs *FlashStore) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return ""
	}
	id, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok || !fs.verifySignature(id, signature) {
		return ""
	}
	return id
}

func (fs *FlashStore) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    id + "." + fs.signData(id),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// signData creates an HMAC signature for data
func (fs *FlashStore) signData(data string) string {
	h := hmac.New(sha256.New, fs.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature
func (fs *FlashStore) verifySignature(data, signature string) bool {
	expected := fs.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}
