package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// addAndCarryCookie adds message and returns a follow-up request carrying the issued cookie.
func addAndCarryCookie(t *testing.T, fs *FlashStore, message string) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	fs.Add(rec, httptest.NewRequest(http.MethodPost, "/", nil), message)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != flashCookieName {
		t.Fatalf("expected one %s cookie, got %v", flashCookieName, cookies)
	}
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	return next
}

func TestFlashStore_AddAndPop(t *testing.T) {
	fs := NewFlashStore("secret")
	defer fs.Stop()

	req := addAndCarryCookie(t, fs, "No file part")

	rec := httptest.NewRecorder()
	fs.Add(rec, req, "second")
	if len(rec.Result().Cookies()) != 0 {
		t.Error("existing session should not get a new cookie")
	}

	got := fs.Pop(req)
	if len(got) != 2 || got[0] != "No file part" || got[1] != "second" {
		t.Errorf("Pop() = %v, want [No file part second]", got)
	}
	if again := fs.Pop(req); len(again) != 0 {
		t.Errorf("second Pop() = %v, want empty", again)
	}
}

func TestFlashStore_RejectsTamperedCookie(t *testing.T) {
	fs := NewFlashStore("secret")
	defer fs.Stop()

	req := addAndCarryCookie(t, fs, "hello")
	cookie, _ := req.Cookie(flashCookieName)

	tampered := httptest.NewRequest(http.MethodGet, "/", nil)
	tampered.AddCookie(&http.Cookie{Name: flashCookieName, Value: cookie.Value + "x"})
	if got := fs.Pop(tampered); got != nil {
		t.Errorf("tampered cookie returned %v", got)
	}

	other := NewFlashStore("other-secret")
	defer other.Stop()
	if got := other.Pop(req); got != nil {
		t.Errorf("cookie signed with another secret returned %v", got)
	}
}

func TestFlashStore_Expiry(t *testing.T) {
	fs := NewFlashStore("")
	defer fs.Stop()
	fs.ttl = -time.Second

	req := addAndCarryCookie(t, fs, "stale")
	if got := fs.Pop(req); got != nil {
		t.Errorf("expired messages returned %v", got)
	}

	addAndCarryCookie(t, fs, "stale")
	fs.purgeExpired(time.Now())
	if fs.Len() != 0 {
		t.Errorf("Len() = %d after purge, want 0", fs.Len())
	}
}

func TestFlashStore_PopWithoutCookie(t *testing.T) {
	fs := NewFlashStore("secret")
	defer fs.Stop()
	fs.Stop()

	if got := fs.Pop(httptest.NewRequest(http.MethodGet, "/", nil)); got != nil {
		t.Errorf("Pop() = %v, want nil", got)
	}
}
