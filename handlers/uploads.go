package handlers

import (
	"errors"
	"net/http"

	"safemap/apperrors"
	"safemap/middleware"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// UploadReportImage handles POST /api/v3/reports/:id/image. Only the
// report's author may attach an image; validation happens before any
// byte is stored.
func (h *Handlers) UploadReportImage(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id := c.Param("id")

	report, err := h.store.GetReport(c.Request.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	if err != nil {
		log.Errorf("Failed to load report %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload image"})
		return
	}
	if report.AuthorID != session.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the author may attach an image"})
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer file.Close()

	url, err := h.uploads.SaveReportImage(id, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		if apperrors.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("Failed to store report image: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload image"})
		return
	}

	if err := h.store.SetReportImage(c.Request.Context(), id, session.UserID, url); err != nil {
		h.uploads.Delete(url)
		log.Errorf("Failed to record report image: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_url": url})
}

// UploadProfileImage handles POST /api/v3/users/me/image.
func (h *Handlers) UploadProfileImage(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer file.Close()

	url, err := h.uploads.SaveProfileImage(session.UserID, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		if apperrors.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("Failed to store profile image: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload image"})
		return
	}

	if err := h.profiles.SetAvatarURL(c.Request.Context(), session.UserID, url); err != nil {
		h.uploads.Delete(url)
		log.Errorf("Failed to record avatar: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar_url": url})
}
