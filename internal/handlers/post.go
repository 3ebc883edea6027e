package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/feedby/feedline/internal/es"
	"github.com/feedby/feedline/internal/logging"
	"github.com/feedby/feedline/internal/middleware/auth"
	"github.com/feedby/feedline/internal/models"
	"github.com/feedby/feedline/internal/mykafka"
	"github.com/feedby/feedline/internal/storage"
	"github.com/feedby/feedline/internal/util"
)

const maxImageSize = 5 << 20

type PostHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Uploads  storage.Uploader
	ES       *elasticsearch.Client
	Index    string
}

// PostView is a post augmented with the caller-facing derived fields.
type PostView struct {
	models.Post
	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	IsLiked      bool  `json:"is_liked"`
}

// PostDetail additionally embeds the post's comments, newest first.
type PostDetail struct {
	PostView
	Comments []models.Comment `json:"comments"`
}

func (h *PostHandler) CreatePost(c echo.Context) error {
	identity, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
	}

	var req struct {
		Title   string `json:"title" form:"title"`
		Content string `json:"content" form:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Post title and content are required")
	}

	imageURL, err := h.uploadImage(c, identity.ID)
	if err != nil {
		return err
	}

	post := models.Post{
		UserID:   identity.ID,
		Title:    req.Title,
		Content:  req.Content,
		ImageURL: imageURL,
	}
	if err := h.DB.Create(&post).Error; err != nil {
		return storeError(c, "post_create", err)
	}
	if err := h.DB.Preload("User").First(&post, post.ID).Error; err != nil {
		return storeError(c, "post_reload", err)
	}

	h.indexPost(c, &post)
	publishEvent(c, h.Producer, "post_events", fmt.Sprint(identity.ID), map[string]any{
		"type":   "post_created",
		"postID": post.ID,
		"userID": identity.ID,
	})

	return c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) GetPosts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, limit)

	identity, authed := auth.FromContext(c)
	ctx := c.Request().Context()

	var posts []models.Post
	if err := h.DB.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error; err != nil {
		return storeError(c, "posts_list", err)
	}

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		return storeError(c, "posts_count", err)
	}

	views, err := h.hydrate(ctx, posts, identity.ID, authed)
	if err != nil {
		return storeError(c, "posts_hydrate", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"posts":       views,
		"totalPosts":  total,
		"currentPage": page,
		"totalPages":  (total + int64(limit) - 1) / int64(limit),
	})
}

func (h *PostHandler) GetPost(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid post id")
	}

	identity, authed := auth.FromContext(c)
	ctx := c.Request().Context()

	var post models.Post
	if err := h.DB.WithContext(ctx).Preload("User").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return storeError(c, "post_get", err)
	}

	detail := PostDetail{PostView: PostView{Post: post}}

	// Independent read-only lookups, issued together.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.DB.WithContext(gctx).
			Preload("User").
			Where("post_id = ?", post.ID).
			Order("created_at DESC").
			Find(&detail.Comments).Error
	})
	g.Go(func() error {
		return h.DB.WithContext(gctx).Model(&models.Like{}).
			Where("post_id = ?", post.ID).
			Count(&detail.LikeCount).Error
	})
	if authed {
		g.Go(func() error {
			var n int64
			if err := h.DB.WithContext(gctx).Model(&models.Like{}).
				Where("post_id = ? AND user_id = ?", post.ID, identity.ID).
				Count(&n).Error; err != nil {
				return err
			}
			detail.IsLiked = n > 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return storeError(c, "post_detail", err)
	}
	detail.CommentCount = int64(len(detail.Comments))

	return c.JSON(http.StatusOK, detail)
}

func (h *PostHandler) UpdatePost(c echo.Context) error {
	identity, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid post id")
	}

	var req struct {
		Title   string `json:"title" form:"title"`
		Content string `json:"content" form:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	imageURL, err := h.uploadImage(c, identity.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Content) == "" && imageURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Updated title or content is required")
	}

	var post models.Post
	if err := h.DB.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return storeError(c, "post_update_lookup", err)
	}
	if post.UserID != identity.ID {
		return echo.NewHTTPError(http.StatusForbidden, "You can only update your own posts")
	}

	updates := map[string]any{}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Content != "" {
		updates["content"] = req.Content
	}
	if imageURL != "" {
		updates["image_url"] = imageURL
	}

	// The owner filter repeats the check at the store; zero rows affected
	// means the row changed hands underneath us.
	res := h.DB.Model(&models.Post{}).
		Where("id = ? AND user_id = ?", id, identity.ID).
		Updates(updates)
	if res.Error != nil {
		return storeError(c, "post_update", res.Error)
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusForbidden, "You can only update your own posts")
	}

	if err := h.DB.Preload("User").First(&post, id).Error; err != nil {
		return storeError(c, "post_update_reload", err)
	}

	h.indexPost(c, &post)
	publishEvent(c, h.Producer, "post_events", fmt.Sprint(identity.ID), map[string]any{
		"type":   "post_updated",
		"postID": post.ID,
		"userID": identity.ID,
	})

	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) DeletePost(c echo.Context) error {
	identity, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid post id")
	}

	var post models.Post
	if err := h.DB.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return storeError(c, "post_delete_lookup", err)
	}
	if post.UserID != identity.ID {
		return echo.NewHTTPError(http.StatusForbidden, "You can only delete your own posts")
	}

	// Comments and likes go with the post via the FK cascade.
	res := h.DB.Where("id = ? AND user_id = ?", id, identity.ID).Delete(&models.Post{})
	if res.Error != nil {
		return storeError(c, "post_delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusForbidden, "You can only delete your own posts")
	}

	h.deleteFromIndex(c, uint(id))
	publishEvent(c, h.Producer, "post_events", fmt.Sprint(identity.ID), map[string]any{
		"type":   "post_deleted",
		"postID": id,
		"userID": identity.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Post deleted successfully",
	})
}

// hydrate attaches like/comment counts and the caller's is_liked flag.
// The per-post lookups are read-only and commutative, so they run together.
func (h *PostHandler) hydrate(ctx context.Context, posts []models.Post, callerID uint, authed bool) ([]PostView, error) {
	views := make([]PostView, len(posts))
	g, gctx := errgroup.WithContext(ctx)

	for i := range posts {
		views[i].Post = posts[i]
		postID := posts[i].ID
		view := &views[i]

		g.Go(func() error {
			return h.DB.WithContext(gctx).Model(&models.Like{}).
				Where("post_id = ?", postID).
				Count(&view.LikeCount).Error
		})
		g.Go(func() error {
			return h.DB.WithContext(gctx).Model(&models.Comment{}).
				Where("post_id = ?", postID).
				Count(&view.CommentCount).Error
		})
		if authed {
			g.Go(func() error {
				var n int64
				if err := h.DB.WithContext(gctx).Model(&models.Like{}).
					Where("post_id = ? AND user_id = ?", postID, callerID).
					Count(&n).Error; err != nil {
					return err
				}
				view.IsLiked = n > 0
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// uploadImage stores an attached multipart image and returns its public URL.
// No file attached is not an error.
func (h *PostHandler) uploadImage(c echo.Context, userID uint) (string, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return "", nil
	}
	if file.Size > maxImageSize {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Image must be smaller than 5MB")
	}
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Not an image! Please upload an image.")
	}
	if h.Uploads == nil {
		return "", echo.NewHTTPError(http.StatusInternalServerError, "Upload failed")
	}

	src, err := file.Open()
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Upload failed")
	}
	defer src.Close()

	url, err := h.Uploads.Upload(c.Request().Context(), storage.ObjectKey(userID, file.Filename), contentType, src)
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("upload_error", "error", err)
		return "", echo.NewHTTPError(http.StatusInternalServerError, "Upload failed")
	}
	return url, nil
}

func (h *PostHandler) indexPost(c echo.Context, post *models.Post) {
	if h.ES == nil {
		return
	}
	if err := es.IndexPost(c.Request().Context(), h.ES, h.Index, post); err != nil {
		logging.FromContext(c.Request().Context()).Warn("es_index_error", "post_id", post.ID, "error", err)
	}
}

func (h *PostHandler) deleteFromIndex(c echo.Context, postID uint) {
	if h.ES == nil {
		return
	}
	if err := es.DeletePost(c.Request().Context(), h.ES, h.Index, postID); err != nil {
		logging.FromContext(c.Request().Context()).Warn("es_delete_error", "post_id", postID, "error", err)
	}
}
