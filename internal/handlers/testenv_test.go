package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/feedby/feedline/internal/hash"
	"github.com/feedby/feedline/internal/middleware/auth"
	"github.com/feedby/feedline/internal/models"
	"github.com/feedby/feedline/internal/mykafka"
)

func InitTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	// Every new connection to :memory: is a fresh empty database, so pin
	// the pool to one connection before anything else touches it.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// SQLite needs the pragma for the delete cascades the schema declares.
	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}, &models.Like{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

type testEnv struct {
	T         *testing.T
	E         *echo.Echo
	DB        *gorm.DB
	JWTSecret []byte
	Auth      *AuthHandler
	Posts     *PostHandler
	Comments  *CommentHandler
	Likes     *LikeHandler
}

type fakeUploader struct {
	lastKey string
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string, _ io.Reader) (string, error) {
	f.lastKey = key
	return "https://cdn.test/" + key, nil
}

func newTestEnv(t *testing.T) *testEnv {
	db := InitTestDB(t)
	secret := []byte("test-secret")

	return &testEnv{
		T:         t,
		E:         echo.New(),
		DB:        db,
		JWTSecret: secret,
		Auth:      &AuthHandler{DB: db, JWTSecret: secret, Producer: &mykafka.Producer{}},
		Posts:     &PostHandler{DB: db, Producer: &mykafka.Producer{}, Uploads: &fakeUploader{}},
		Comments:  &CommentHandler{DB: db, Producer: &mykafka.Producer{}},
		Likes:     &LikeHandler{DB: db, Producer: &mykafka.Producer{}},
	}
}

func (env *testEnv) doJSONRequest(method, path string, payload any) (*httptest.ResponseRecorder, echo.Context) {
	var body io.Reader
	if payload != nil {
		bodyBytes, _ := json.Marshal(payload)
		body = bytes.NewReader(bodyBytes)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) doMultipartRequest(method, path string, fields map[string]string, imageName, imageType string, image []byte) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(env.T, w.WriteField(k, v))
	}
	if imageName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, imageName))
		h.Set("Content-Type", imageType)
		part, err := w.CreatePart(h)
		require.NoError(env.T, err)
		_, err = part.Write(image)
		require.NoError(env.T, err)
	}
	require.NoError(env.T, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) createUser(email, username string) models.User {
	pwHash, err := hash.HashPassword("password")
	require.NoError(env.T, err)

	user := models.User{Email: email, Username: username, PasswordHash: pwHash}
	require.NoError(env.T, env.DB.Create(&user).Error)
	return user
}

func (env *testEnv) createPost(user models.User, title, content string) models.Post {
	post := models.Post{UserID: user.ID, Title: title, Content: content}
	require.NoError(env.T, env.DB.Create(&post).Error)
	return post
}

func (env *testEnv) asUser(c echo.Context, user models.User) {
	auth.Attach(c, auth.Identity{ID: user.ID, Email: user.Email, Username: user.Username})
}

func toStr(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func requireHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
}
