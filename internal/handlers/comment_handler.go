package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"commentboard/internal/logging"
	"commentboard/internal/models"
	"commentboard/internal/services"
)

type CommentHandler struct {
	comments *services.CommentService
	maxBytes int64
	log      logging.Logger
}

func NewCommentHandler(comments *services.CommentService, maxBytes int64, log logging.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, maxBytes: maxBytes, log: log.With("component", "comment_handler")}
}

// @Summary      Add a comment
// @Description  Stores a comment for the logged-in user. Requires the AccessToken cookie.
// @Tags         Comments
// @Accept       json
// @Produce      json
// @Param        comment  body      models.CommentRequest  true  "Comment"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  map[string]string
// @Failure      401      "Missing or invalid session"
// @Failure      413      {object}  map[string]string
// @Router       /add+comment [post]
func (h *CommentHandler) AddComment(c *gin.Context) {
	loginID, ok := getLoginID(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	var req models.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "comment too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), loginID, req.Comment)
	if err != nil {
		h.log.Warn(c.Request.Context(), "add comment failed", "login_id", loginID, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not add comment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": comment.ID, "comment": comment.Body})
}
