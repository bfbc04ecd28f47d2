package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rakhisingh42/Chat-Application/internal/logger"
	"github.com/rakhisingh42/Chat-Application/internal/store"
	"github.com/rakhisingh42/Chat-Application/internal/uploads"
)

// blockRequest is the payload of block and unblock operations, accepted as
// form data or JSON.
type blockRequest struct {
	Blocker string `form:"blocker" json:"blocker" binding:"required"`
	Blocked string `form:"blocked" json:"blocked" binding:"required"`
}

// Health reports server liveness.
func (g *Gateway) Health(c *gin.Context) {
	c.String(http.StatusOK, "Chat server is running!")
}

// Block records that the blocker refuses messages from the blocked user.
// Blocking an already blocked pair is rejected with 409.
func (g *Gateway) Block(c *gin.Context) {
	var req blockRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "blocker and blocked are required"})
		return
	}

	if err := g.registry.Block(c.Request.Context(), req.Blocker, req.Blocked); err != nil {
		if errors.Is(err, store.ErrBlockExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "user is already blocked"})
			return
		}
		logger.L.Error("block failed", "blocker", req.Blocker, "blocked", req.Blocked, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to block user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User blocked successfully"})
}

// Unblock removes the block for the exact pair. Succeeds whether or not a
// matching record existed.
func (g *Gateway) Unblock(c *gin.Context) {
	var req blockRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "blocker and blocked are required"})
		return
	}

	if err := g.registry.Unblock(c.Request.Context(), req.Blocker, req.Blocked); err != nil {
		logger.L.Error("unblock failed", "blocker", req.Blocker, "blocked", req.Blocked, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unblock user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User unblocked successfully"})
}

// Upload stores a multipart file and returns the path clients reference in
// message events.
func (g *Gateway) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file part"})
		return
	}
	if header.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no selected file"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()

	path, err := g.files.Save(header.Filename, file)
	if err != nil {
		if errors.Is(err, uploads.ErrExtensionNotAllowed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file type not allowed"})
			return
		}
		logger.L.Error("upload failed", "filename", header.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"file_path": path})
}

// History returns stored messages between two users in insertion order.
func (g *Gateway) History(c *gin.Context) {
	userA := c.Query("user_a")
	userB := c.Query("user_b")
	if userA == "" || userB == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_a and user_b are required"})
		return
	}

	messages, err := g.history.ListMessagesBetween(c.Request.Context(), userA, userB, 0)
	if err != nil {
		logger.L.Error("history lookup failed", "user_a", userA, "user_b", userB, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
