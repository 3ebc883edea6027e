package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/feedby/feedline/internal/middleware/auth"
	"github.com/feedby/feedline/internal/models"
	"github.com/feedby/feedline/internal/mykafka"
)

type LikeHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// ToggleLike flips the (caller, post) like row: present deletes, absent
// inserts. Concurrent double-toggles are last-writer-wins.
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	identity, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
	}

	var req struct {
		PostID uint `json:"post_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.PostID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "post_id is required")
	}

	var existing models.Like
	err := h.DB.Where("post_id = ? AND user_id = ?", req.PostID, identity.ID).First(&existing).Error
	switch {
	case err == nil:
		res := h.DB.Where("post_id = ? AND user_id = ?", req.PostID, identity.ID).Delete(&models.Like{})
		if res.Error != nil {
			return storeError(c, "like_delete", res.Error)
		}
		h.publishToggle(c, identity.ID, req.PostID, false)
		return c.JSON(http.StatusOK, echo.Map{
			"message": "Post unliked",
			"liked":   false,
		})

	case errors.Is(err, gorm.ErrRecordNotFound):
		var post models.Post
		if err := h.DB.Select("id").First(&post, req.PostID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "Post not found, cannot like")
			}
			return storeError(c, "like_post_lookup", err)
		}

		like := models.Like{PostID: req.PostID, UserID: identity.ID}
		if err := h.DB.Create(&like).Error; err != nil {
			// A concurrent toggle got there first; the unique index keeps
			// the pair single, so report the state it settled on.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return c.JSON(http.StatusCreated, echo.Map{
					"message": "Post liked",
					"liked":   true,
				})
			}
			return storeError(c, "like_create", err)
		}
		h.publishToggle(c, identity.ID, req.PostID, true)
		return c.JSON(http.StatusCreated, echo.Map{
			"message": "Post liked",
			"liked":   true,
		})

	default:
		return storeError(c, "like_lookup", err)
	}
}

func (h *LikeHandler) publishToggle(c echo.Context, userID, postID uint, liked bool) {
	publishEvent(c, h.Producer, "like_events", fmt.Sprint(userID), map[string]any{
		"type":   "like_toggled",
		"postID": postID,
		"userID": userID,
		"liked":  liked,
	})
}
