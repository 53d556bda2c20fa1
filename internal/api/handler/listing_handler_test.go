package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/api/dto"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/publish"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/storage"
)

type fakeRecordReader struct {
	records map[int64]*publish.Record
}

func (r *fakeRecordReader) GetByListingID(_ context.Context, listingID int64) (*publish.Record, error) {
	rec, ok := r.records[listingID]
	if !ok {
		return nil, storage.ErrListingRecordNotFound
	}
	return rec, nil
}

func newRecordTestHandler(records map[int64]*publish.Record) *JobHandler {
	return NewJobHandler(&Dependencies{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Records: &fakeRecordReader{records: records},
	})
}

func TestJobHandler_GetListingRecord(t *testing.T) {
	gin.SetMode(gin.TestMode)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h := newRecordTestHandler(map[int64]*publish.Record{
		4242: {
			ListingID:      4242,
			JobID:          "d3b07384-d9a0-4c2e-9a5e-111111111111",
			ShopID:         "shop-1",
			State:          listing.StateActive,
			UploadedImages: 3,
			CreatedAt:      created,
		},
	})

	tests := []struct {
		name       string
		listingID  string
		wantStatus int
	}{
		{name: "existing record", listingID: "4242", wantStatus: http.StatusOK},
		{name: "unknown record", listingID: "999", wantStatus: http.StatusNotFound},
		{name: "non-numeric id", listingID: "abc", wantStatus: http.StatusBadRequest},
		{name: "non-positive id", listingID: "0", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/listings/"+tt.listingID, nil)
			c.Params = gin.Params{{Key: "listing_id", Value: tt.listingID}}

			h.GetListingRecord(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var got dto.ListingRecordDTO
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, int64(4242), got.ListingID)
			assert.Equal(t, "shop-1", got.ShopID)
			assert.Equal(t, "active", got.State)
			assert.Equal(t, 3, got.UploadedImages)
			assert.Equal(t, created.Format(time.RFC3339), got.CreatedAt)
		})
	}
}
