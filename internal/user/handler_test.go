package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"profile_hub_backend/internal/middleware"
)

// fakeVerifier resolves bearer tokens from a fixed map.
type fakeVerifier struct {
	tokens map[string]*firebaseauth.Token
}

func (f *fakeVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	token, ok := f.tokens[idToken]
	if !ok {
		return nil, errors.New("ID token has been revoked")
	}
	return token, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memRepository, *fakeIdentity, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemRepository()
	identity := &fakeIdentity{}
	svc := newTestService(repo, identity)
	handler := NewHandler(svc, zap.NewNop())

	verifier := &fakeVerifier{tokens: map[string]*firebaseauth.Token{
		"good-token": {
			UID:    "uid-1",
			Claims: map[string]interface{}{"email": "a@example.com"},
		},
	}}

	router := gin.New()
	authMW := middleware.AuthMiddleware(verifier, zap.NewNop())
	passthrough := func(c *gin.Context) { c.Next() }
	handler.RegisterRoutes(router.Group(""), authMW, passthrough)

	return router, repo, identity, svc
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_MissingAuthorizationHeader(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/auth/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestHandler_InvalidToken(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/auth/user", "bad-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody(t, rec)
	details, _ := body["details"].(string)
	assert.Contains(t, details, "Invalid authentication credentials")
}

func TestHandler_LoginSocialCreatesUser(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "good-token",
		gin.H{"provider": "google", "displayName": "John Smith"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	userBody, ok := body["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "uid-1", userBody["uid"])
	assert.Equal(t, "johnsmith", userBody["username"])
	assert.Equal(t, "a@example.com", userBody["email"])
	assert.Equal(t, float64(0), userBody["profileViews"])
}

func TestHandler_LoginUnknownEmailProvider(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "good-token",
		gin.H{"provider": "email"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_LoginRejectsUnknownProvider(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "good-token",
		gin.H{"provider": "github"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RegisterAndConflict(t *testing.T) {
	router, _, _, svc := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", "good-token",
		gin.H{"username": "Ali Ce"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	userBody, ok := body["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice", userBody["username"])
	assert.Equal(t, "email", userBody["provider"])

	// Same uid registering again conflicts and leaves the record alone.
	rec = doJSON(t, router, http.MethodPost, "/auth/register", "good-token",
		gin.H{"username": "other"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	stored, err := svc.GetByUID(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)
}

func TestHandler_GetUser(t *testing.T) {
	router, repo, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/auth/user", "good-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	seedProfile(t, repo, "uid-1", "alice", "a@example.com")

	rec = doJSON(t, router, http.MethodGet, "/auth/user", "good-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	userBody := body["user"].(map[string]interface{})
	assert.Equal(t, "alice", userBody["username"])
}

func TestHandler_UpdateFiltersProtectedFields(t *testing.T) {
	router, repo, _, _ := newTestRouter(t)

	seedProfile(t, repo, "uid-1", "alice", "a@example.com")

	rec := doJSON(t, router, http.MethodPut, "/auth/update", "good-token",
		gin.H{"name": "Renamed", "email": "hijack@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	userBody := body["user"].(map[string]interface{})
	assert.Equal(t, "Renamed", userBody["name"])
	assert.Equal(t, "a@example.com", userBody["email"])
}

func TestHandler_DeleteAccount(t *testing.T) {
	router, repo, identity, svc := newTestRouter(t)

	rec := doJSON(t, router, http.MethodDelete, "/auth/delete", "good-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	seedProfile(t, repo, "uid-1", "alice", "a@example.com")

	rec = doJSON(t, router, http.MethodDelete, "/auth/delete", "good-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Account deleted successfully", body["message"])

	svc.WaitForCleanup()
	assert.Equal(t, []string{"uid-1"}, identity.deletedUIDs())
}

func TestHandler_CheckUsername(t *testing.T) {
	router, repo, _, _ := newTestRouter(t)

	// Missing username is a 400; no auth required on this route.
	rec := doJSON(t, router, http.MethodPost, "/auth/check-username", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/check-username", "", gin.H{"username": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["available"])
	assert.Equal(t, "Username is available", body["message"])

	seedProfile(t, repo, "uid-1", "alice", "a@example.com")

	rec = doJSON(t, router, http.MethodPost, "/auth/check-username", "", gin.H{"username": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["available"])
	assert.Equal(t, "Username is already taken", body["message"])
}

func TestHandler_PublicProfile(t *testing.T) {
	router, repo, _, svc := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/profile/get/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	seedProfile(t, repo, "uid-1", "alice", "a@example.com")

	rec = doJSON(t, router, http.MethodGet, "/profile/get/alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	info := body["userinfo"].(map[string]interface{})
	assert.Equal(t, "alice", info["username"])

	// Every read counts a view, owner included.
	stored, err := svc.GetByUID(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ProfileViews)
}
