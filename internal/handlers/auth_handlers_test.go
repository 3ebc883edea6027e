package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feedby/feedline/internal/models"
	"github.com/feedby/feedline/internal/tokens"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{
		"email":    "alice@example.com",
		"password": "password",
		"username": "alice",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/register", payload)
	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Message string      `json:"message"`
		User    models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "alice@example.com", resp.User.Email)
	require.Equal(t, "alice", resp.User.Username)
	require.NotEmpty(t, resp.User.ID)
	require.NotContains(t, rec.Body.String(), "password")

	var stored models.User
	require.NoError(t, env.DB.First(&stored, resp.User.ID).Error)
	require.NotEqual(t, "password", stored.PasswordHash)
}

func TestRegisterMissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "alice@example.com",
	})
	requireHTTPError(t, env.Auth.Register(c), http.StatusBadRequest)
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("alice@example.com", "alice")

	// Same email, different username.
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "alice@example.com",
		"password": "password",
		"username": "alice2",
	})
	requireHTTPError(t, env.Auth.Register(c), http.StatusConflict)

	// Same username, different email.
	_, c = env.doJSONRequest(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "alice2@example.com",
		"password": "password",
		"username": "alice",
	})
	requireHTTPError(t, env.Auth.Register(c), http.StatusConflict)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice@example.com", "alice")

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password",
	})
	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "alice@example.com", resp["email"])
	require.NotEmpty(t, resp["token"])

	// The issued token verifies and round-trips the identity.
	claims, err := tokens.Parse(resp["token"].(string), env.JWTSecret)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, user.Username, claims.Username)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, "accessToken", cookies[0].Name)
	require.Equal(t, resp["token"], cookies[0].Value)
}

// Unknown email and wrong password must be indistinguishable.
func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("alice@example.com", "alice")

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	err := env.Auth.Login(c)
	requireHTTPError(t, err, http.StatusUnauthorized)
	wrongPassword := err.Error()

	_, c = env.doJSONRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "password",
	})
	err = env.Auth.Login(c)
	requireHTTPError(t, err, http.StatusUnauthorized)
	require.Equal(t, wrongPassword, err.Error())
}

func TestLoginMissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "alice@example.com",
	})
	requireHTTPError(t, env.Auth.Login(c), http.StatusBadRequest)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice@example.com", "alice")

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/auth/me", nil)
	env.asUser(c, user)
	require.NoError(t, env.Auth.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, user.Email, got.Email)
}

func TestMeUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodGet, "/api/v1/auth/me", nil)
	requireHTTPError(t, env.Auth.Me(c), http.StatusUnauthorized)
}

func TestLogOut(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	require.NoError(t, env.Auth.LogOut(c))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, "accessToken", cookies[0].Name)
	require.Empty(t, cookies[0].Value)
}
