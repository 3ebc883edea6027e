package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feedby/feedline/internal/models"
)

func likeCount(env *testEnv, postID uint) int64 {
	var n int64
	env.DB.Model(&models.Like{}).Where("post_id = ?", postID).Count(&n)
	return n
}

func TestToggleLike(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@example.com", "alice")
	bob := env.createUser("bob@example.com", "bob")
	post := env.createPost(alice, "title", "body")

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/likes", map[string]any{"post_id": post.ID})
	env.asUser(c, bob)
	require.NoError(t, env.Likes.ToggleLike(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, true, resp["liked"])
	require.Equal(t, int64(1), likeCount(env, post.ID))

	// Second toggle by the same caller undoes the first.
	rec, c = env.doJSONRequest(http.MethodPost, "/api/v1/likes", map[string]any{"post_id": post.ID})
	env.asUser(c, bob)
	require.NoError(t, env.Likes.ToggleLike(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["liked"])
	require.Equal(t, int64(0), likeCount(env, post.ID))
}

func TestToggleLikeTwoUsers(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@example.com", "alice")
	bob := env.createUser("bob@example.com", "bob")
	post := env.createPost(alice, "title", "body")

	for _, u := range []models.User{alice, bob} {
		_, c := env.doJSONRequest(http.MethodPost, "/api/v1/likes", map[string]any{"post_id": post.ID})
		env.asUser(c, u)
		require.NoError(t, env.Likes.ToggleLike(c))
	}
	require.Equal(t, int64(2), likeCount(env, post.ID))

	// Bob unliking leaves Alice's like alone.
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/likes", map[string]any{"post_id": post.ID})
	env.asUser(c, bob)
	require.NoError(t, env.Likes.ToggleLike(c))
	require.Equal(t, int64(1), likeCount(env, post.ID))

	var remaining models.Like
	require.NoError(t, env.DB.Where("post_id = ?", post.ID).First(&remaining).Error)
	require.Equal(t, alice.ID, remaining.UserID)
}

func TestToggleLikeMissingPost(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@example.com", "alice")

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/likes", map[string]any{"post_id": 999})
	env.asUser(c, alice)
	requireHTTPError(t, env.Likes.ToggleLike(c), http.StatusNotFound)
}

func TestToggleLikeMissingPostID(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@example.com", "alice")

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/likes", map[string]any{})
	env.asUser(c, alice)
	requireHTTPError(t, env.Likes.ToggleLike(c), http.StatusBadRequest)
}
