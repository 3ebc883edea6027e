package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/feedby/feedline/internal/middleware/auth"
	"github.com/feedby/feedline/internal/models"
	"github.com/feedby/feedline/internal/mykafka"
)

type CommentHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *CommentHandler) CreateComment(c echo.Context) error {
	identity, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
	}

	var req struct {
		PostID  uint   `json:"post_id"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Comment content cannot be empty")
	}
	if req.PostID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "post_id is required")
	}

	// The post can vanish between this check and the insert; the FK
	// constraint is the backstop.
	var post models.Post
	if err := h.DB.Select("id").First(&post, req.PostID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found, cannot comment")
		}
		return storeError(c, "comment_post_lookup", err)
	}

	comment := models.Comment{
		PostID:  req.PostID,
		UserID:  identity.ID,
		Content: req.Content,
	}
	if err := h.DB.Create(&comment).Error; err != nil {
		return storeError(c, "comment_create", err)
	}
	if err := h.DB.Preload("User").First(&comment, comment.ID).Error; err != nil {
		return storeError(c, "comment_reload", err)
	}

	publishEvent(c, h.Producer, "comment_events", fmt.Sprint(identity.ID), map[string]any{
		"type":      "comment_created",
		"commentID": comment.ID,
		"postID":    comment.PostID,
		"userID":    identity.ID,
	})

	return c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) GetComments(c echo.Context) error {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid post id")
	}

	var comments []models.Comment
	if err := h.DB.Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return storeError(c, "comments_list", err)
	}

	return c.JSON(http.StatusOK, comments)
}

func (h *CommentHandler) DeleteComment(c echo.Context) error {
	identity, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid comment id")
	}

	var comment models.Comment
	if err := h.DB.First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Comment not found")
		}
		return storeError(c, "comment_delete_lookup", err)
	}
	if comment.UserID != identity.ID {
		return echo.NewHTTPError(http.StatusForbidden, "You can only delete your own comments")
	}

	res := h.DB.Where("id = ? AND user_id = ?", id, identity.ID).Delete(&models.Comment{})
	if res.Error != nil {
		return storeError(c, "comment_delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusForbidden, "You can only delete your own comments")
	}

	publishEvent(c, h.Producer, "comment_events", fmt.Sprint(identity.ID), map[string]any{
		"type":      "comment_deleted",
		"commentID": id,
		"userID":    identity.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Comment deleted successfully",
	})
}
