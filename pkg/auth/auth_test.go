package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenContext_RoundTrip(t *testing.T) {
	ctx := context.Background()
	require.Empty(t, TokenFrom(ctx))

	ctx = WithToken(ctx, "tok-123")
	require.Equal(t, "tok-123", TokenFrom(ctx))
}

func TestTokenContext_ConcurrentIsolation(t *testing.T) {
	// Two goroutines with independently bound tokens must never observe
	// each other's credential.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tok := fmt.Sprintf("tok-%d", n)
			ctx := WithToken(context.Background(), tok)
			for j := 0; j < 100; j++ {
				if got := TokenFrom(ctx); got != tok {
					t.Errorf("token leaked: got %q want %q", got, tok)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestSessionTokens_FromCookie(t *testing.T) {
	sessions := NewSessionStore()
	id := sessions.Create("erp-token-abc")

	var seen string
	h := SessionTokens(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TokenFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "erp-token-abc", seen)
}

func TestSessionTokens_BearerFallback(t *testing.T) {
	sessions := NewSessionStore()

	var seen string
	h := SessionTokens(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TokenFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer direct-token")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "direct-token", seen)
}

func TestSessionStore_UnknownSession(t *testing.T) {
	sessions := NewSessionStore()
	require.Empty(t, sessions.Token("nope"))
}

func TestRequestID_Injected(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, got)
	require.Equal(t, got, rec.Header().Get("X-Request-ID"))
}

func TestParseIdentity(t *testing.T) {
	claims := map[string]any{
		"sub":       "user-1",
		"username":  "mario",
		"full_name": "Mario Rossi",
		"exp":       time.Now().Add(time.Hour).Unix(),
		"tenant":    map[string]any{"tenant_id": "t-9"},
	}
	token := makeUnsignedJWT(t, claims)

	id, err := ParseIdentity(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", id.Subject)
	require.Equal(t, "mario", id.Username)
	require.Equal(t, "Mario Rossi", id.FullName)
	require.Equal(t, "t-9", id.TenantID)
	require.False(t, id.Expired(time.Now()))
	require.True(t, id.Expired(time.Now().Add(2*time.Hour)))
}

func TestParseIdentity_Garbage(t *testing.T) {
	_, err := ParseIdentity("not-a-jwt")
	require.Error(t, err)
}

func makeUnsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	header := map[string]string{"alg": "none", "typ": "JWT"}
	return enc(header) + "." + enc(claims) + "."
}
