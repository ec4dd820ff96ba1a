package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"perch/internal/database"
	"perch/internal/engine"
	"perch/internal/middleware"
	"perch/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer wires the full stack over the in-memory store, with the
// same route table the server binary uses.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := database.NewMemory()
	metrics := utils.NewMetricsCollector()
	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, store, nil, metrics)
	auth := middleware.NewAuth("test-secret", time.Hour)

	server := NewServer(eng, store, auth, nil, nil, metrics)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", server.HandleHealth())
	mux.HandleFunc("POST /api/auth/register", server.HandleRegister())
	mux.HandleFunc("POST /api/auth/login", server.HandleLogin())
	mux.HandleFunc("GET /api/auth/me", auth.RequireAuth(server.HandleMe()))
	mux.HandleFunc("GET /api/users/{id}", server.HandleGetUser())
	mux.HandleFunc("GET /api/users/username/{username}", server.HandleGetUserByUsername())
	mux.HandleFunc("DELETE /api/users/me", auth.RequireAuth(server.HandleDeleteAccount()))
	mux.HandleFunc("DELETE /api/users/{identifier}", auth.RequireAuth(server.HandleDeleteAccountByIdentifier()))
	mux.HandleFunc("POST /api/users/{id}/follow", auth.RequireAuth(server.HandleFollow()))
	mux.HandleFunc("POST /api/users/{id}/unfollow", auth.RequireAuth(server.HandleUnfollow()))
	mux.HandleFunc("GET /api/users/me/saved", auth.RequireAuth(server.HandleGetSavedPosts()))
	mux.HandleFunc("POST /api/posts", auth.RequireAuth(server.HandleCreatePost()))
	mux.HandleFunc("GET /api/posts", server.HandleGetPosts())
	mux.HandleFunc("GET /api/posts/{id}", server.HandleGetPost())
	mux.HandleFunc("DELETE /api/posts/{id}", auth.RequireAuth(server.HandleDeletePost()))
	mux.HandleFunc("POST /api/posts/{id}/save", auth.RequireAuth(server.HandleSavePost()))
	mux.HandleFunc("POST /api/posts/{id}/like", auth.RequireAuth(server.HandleLikePost()))
	mux.HandleFunc("GET /api/posts/{id}/like", auth.RequireAuth(server.HandleCheckLike()))
	mux.HandleFunc("POST /api/posts/{id}/comments", auth.RequireAuth(server.HandleAddComment()))
	mux.HandleFunc("GET /api/posts/{id}/comments", server.HandleGetPostComments())
	mux.HandleFunc("GET /api/notifications", auth.RequireAuth(server.HandleGetNotifications()))

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func call(t *testing.T, ts *httptest.Server, token, method, path string, body interface{}) (int, *envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, &env
}

func registerViaAPI(t *testing.T, ts *httptest.Server, username string) (token, userID string) {
	t.Helper()
	status, env := call(t, ts, "", http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "User " + username,
		"username": username,
		"mobileNo": fmt.Sprintf("9%09d", len(username)*1000+int(username[0])),
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, env.Success)

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp.Token, resp.User.ID
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	token, _ := registerViaAPI(t, ts, "heron")

	// The token works against a protected route.
	status, env := call(t, ts, token, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	// Wrong password is a 401 with the error envelope.
	status, env = call(t, ts, "", http.MethodPost, "/api/auth/login", map[string]string{
		"username": "heron",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)

	status, env = call(t, ts, "", http.MethodPost, "/api/auth/login", map[string]string{
		"username": "heron",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	// No token at all.
	resp, err := ts.Client().Get(ts.URL + "/api/auth/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFollowConflictStatuses(t *testing.T) {
	ts := newTestServer(t)

	aliceToken, aliceID := registerViaAPI(t, ts, "alice")
	_, bobID := registerViaAPI(t, ts, "bob")

	status, _ := call(t, ts, aliceToken, http.MethodPost, "/api/users/"+bobID+"/follow", nil)
	assert.Equal(t, http.StatusOK, status)

	// Second follow conflicts.
	status, env := call(t, ts, aliceToken, http.MethodPost, "/api/users/"+bobID+"/follow", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)

	// Self-follow is a bad request.
	status, _ = call(t, ts, aliceToken, http.MethodPost, "/api/users/"+aliceID+"/follow", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, ts, aliceToken, http.MethodPost, "/api/users/"+bobID+"/unfollow", nil)
	assert.Equal(t, http.StatusOK, status)

	// Unfollowing someone not followed conflicts.
	status, _ = call(t, ts, aliceToken, http.MethodPost, "/api/users/"+bobID+"/unfollow", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	aliceToken, _ := registerViaAPI(t, ts, "alice")
	bobToken, _ := registerViaAPI(t, ts, "bob")

	status, env := call(t, ts, aliceToken, http.MethodPost, "/api/posts", map[string]string{
		"content": "hello world",
	})
	require.Equal(t, http.StatusCreated, status)

	var post struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))

	// Bob likes it; the response carries the updated counter.
	status, env = call(t, ts, bobToken, http.MethodPost, "/api/posts/"+post.ID+"/like", nil)
	require.Equal(t, http.StatusOK, status)
	var liked struct {
		LikesCount int `json:"likesCount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &liked))
	assert.Equal(t, 1, liked.LikesCount)

	status, _ = call(t, ts, bobToken, http.MethodPost, "/api/posts/"+post.ID+"/like", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, env = call(t, ts, bobToken, http.MethodGet, "/api/posts/"+post.ID+"/like", nil)
	require.Equal(t, http.StatusOK, status)
	var check struct {
		Liked bool `json:"liked"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &check))
	assert.True(t, check.Liked)

	// Bob comments and saves, then alice deletes the post.
	status, _ = call(t, ts, bobToken, http.MethodPost, "/api/posts/"+post.ID+"/comments",
		map[string]string{"body": "nice"})
	assert.Equal(t, http.StatusCreated, status)
	status, _ = call(t, ts, bobToken, http.MethodPost, "/api/posts/"+post.ID+"/save", nil)
	assert.Equal(t, http.StatusOK, status)

	// Only the author may delete.
	status, _ = call(t, ts, bobToken, http.MethodDelete, "/api/posts/"+post.ID, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, ts, aliceToken, http.MethodDelete, "/api/posts/"+post.ID, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, ts, "", http.MethodGet, "/api/posts/"+post.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Bob's saved list no longer references the deleted post.
	status, env = call(t, ts, bobToken, http.MethodGet, "/api/users/me/saved", nil)
	require.Equal(t, http.StatusOK, status)
	var saved []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Empty(t, saved)

	// Alice keeps the like and comment notifications from before the delete.
	status, env = call(t, ts, aliceToken, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, status)
	var notifications []struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &notifications))
	assert.Len(t, notifications, 2)
}

func TestDeleteAccountEndsSession(t *testing.T) {
	ts := newTestServer(t)

	aliceToken, aliceID := registerViaAPI(t, ts, "alice")
	bobToken, _ := registerViaAPI(t, ts, "bob")

	// Deleting someone else's account is forbidden, by id and by username.
	status, _ := call(t, ts, bobToken, http.MethodDelete, "/api/users/"+aliceID, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, ts, bobToken, http.MethodDelete, "/api/users/alice", nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Deleting your own account expires the session cookie.
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/users/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cleared bool
	for _, cookie := range resp.Cookies() {
		if cookie.Name == middleware.TokenCookieName {
			cleared = cookie.MaxAge < 0
		}
	}
	assert.True(t, cleared, "expected the token cookie to be expired")

	// The old token no longer resolves to a user.
	status, _ = call(t, ts, aliceToken, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Self-deletion through the identifier route works by username.
	status, _ = call(t, ts, bobToken, http.MethodDelete, "/api/users/bob", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCommentThreadShape(t *testing.T) {
	ts := newTestServer(t)

	token, _ := registerViaAPI(t, ts, "alice")

	status, env := call(t, ts, token, http.MethodPost, "/api/posts", map[string]string{
		"content": "thread me",
	})
	require.Equal(t, http.StatusCreated, status)
	var post struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))

	status, _ = call(t, ts, token, http.MethodPost, "/api/posts/"+post.ID+"/comments",
		map[string]string{"body": "top"})
	require.Equal(t, http.StatusCreated, status)

	status, env = call(t, ts, "", http.MethodGet, "/api/posts/"+post.ID+"/comments", nil)
	require.Equal(t, http.StatusOK, status)

	var thread []struct {
		Body    string            `json:"body"`
		Replies []json.RawMessage `json:"replies"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &thread))
	require.Len(t, thread, 1)
	assert.Equal(t, "top", thread[0].Body)
	assert.NotNil(t, thread[0].Replies)
}
