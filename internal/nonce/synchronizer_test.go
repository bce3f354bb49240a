package nonce

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wso2/open-auth-bouncer/internal/session"
)

func requestWithNonce(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/hello-world", nil)
	if value != "" {
		req.AddCookie(&http.Cookie{Name: "my_session_nonce", Value: value})
	}
	return req
}

func TestSynchronizeDisabled(t *testing.T) {
	sync := NewSynchronizer("")
	sess := session.New("sid")
	sess.SyncNonce = "recorded"

	if got := sync.Synchronize(sess, requestWithNonce("other")); got != InSync {
		t.Errorf("Expected InSync when disabled, got %v", got)
	}
	if sess.Dirty() {
		t.Errorf("Expected no session change when disabled")
	}
}

func TestSynchronizeAdoptsOnFirstContact(t *testing.T) {
	sync := NewSynchronizer("my_session_nonce")
	sess := session.New("sid")

	if got := sync.Synchronize(sess, requestWithNonce("v1")); got != InSync {
		t.Fatalf("Expected InSync on adoption, got %v", got)
	}
	if sess.SyncNonce != "v1" {
		t.Errorf("Expected nonce v1 adopted, got %q", sess.SyncNonce)
	}

	// Replaying the same value never desyncs
	for i := 0; i < 3; i++ {
		if got := sync.Synchronize(sess, requestWithNonce("v1")); got != InSync {
			t.Fatalf("Expected InSync on replay %d, got %v", i, got)
		}
	}
}

func TestSynchronizeNoCookieNoNonce(t *testing.T) {
	sync := NewSynchronizer("my_session_nonce")
	sess := session.New("sid")

	if got := sync.Synchronize(sess, requestWithNonce("")); got != InSync {
		t.Errorf("Expected InSync, got %v", got)
	}
	if sess.SyncNonce != "" || sess.Dirty() {
		t.Errorf("Expected nothing adopted")
	}
}

func TestSynchronizeDetectsChange(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		expected Status
	}{
		{name: "Same value", incoming: "v1", expected: InSync},
		{name: "Changed value", incoming: "v2", expected: Desynced},
		{name: "Cookie removed", incoming: "", expected: Desynced},
	}

	sync := NewSynchronizer("my_session_nonce")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sess := session.New("sid")
			sess.AdoptNonce("v1")

			if got := sync.Synchronize(sess, requestWithNonce(tc.incoming)); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
			if sess.SyncNonce != "v1" {
				t.Errorf("Expected recorded nonce untouched, got %q", sess.SyncNonce)
			}
		})
	}
}
