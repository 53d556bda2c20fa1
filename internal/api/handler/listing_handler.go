package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/api/dto"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/storage"
)

// GetListingRecord handles GET /api/v1/listings/:listing_id
// Returns the publication record of a marketplace listing: which job and shop
// produced it, its state and how many images made it up.
func (h *JobHandler) GetListingRecord(c *gin.Context) {
	listingID, err := strconv.ParseInt(c.Param("listing_id"), 10, 64)
	if err != nil || listingID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	rec, err := h.records.GetByListingID(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, storage.ErrListingRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing record not found"})
			return
		}

		h.logger.Error("failed to get listing record",
			slog.Int64("listing_id", listingID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get listing record"})
		return
	}

	c.JSON(http.StatusOK, dto.ListingRecordDTO{
		ListingID:      rec.ListingID,
		JobID:          rec.JobID,
		ShopID:         rec.ShopID,
		State:          string(rec.State),
		UploadedImages: rec.UploadedImages,
		CreatedAt:      rec.CreatedAt.Format(time.RFC3339),
	})
}
