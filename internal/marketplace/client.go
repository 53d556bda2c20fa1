// Package marketplace drives the external listing API: draft creation, media
// uploads, inventory updates and activation. Every call carries a fixed
// deadline and consults the rate-limit tracker before going out on the wire.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/ratelimit"
)

// DefaultRetryAfter applies when a 429 response carries no Retry-After header.
const DefaultRetryAfter = 3600 * time.Second

// Config holds marketplace client configuration.
type Config struct {
	BaseURL     string
	APIKey      string
	CallTimeout time.Duration
}

// Client is an HTTP client for the marketplace listing API.
type Client struct {
	baseURL     string
	apiKey      string
	callTimeout time.Duration
	httpClient  *http.Client
	limiter     *ratelimit.Tracker
	logger      *slog.Logger
}

// NewClient creates a marketplace client. The tracker is shared process-wide
// so all callers observe the same throttle state.
func NewClient(cfg *Config, limiter *ratelimit.Tracker, logger *slog.Logger) *Client {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		callTimeout: timeout,
		httpClient:  &http.Client{},
		limiter:     limiter,
		logger:      logger,
	}
}

// DraftListing carries the resolved fields for the create-listing call.
// Listings are always created in draft state and activated separately.
type DraftListing struct {
	Title             string
	Description       string
	Price             float64
	Quantity          int
	Tags              []string
	Materials         []string
	TaxonomyID        int64
	ShippingProfileID int64
	WhoMade           string
	WhenMade          string
	ProcessingMin     int
	ProcessingMax     int
	IsPersonalizable  bool
}

// CreateDraftListing creates the listing in draft state and returns the
// marketplace listing id.
func (c *Client) CreateDraftListing(ctx context.Context, shopID string, draft *DraftListing) (int64, error) {
	endpoint := fmt.Sprintf("%s/v3/application/shops/%s/listings", c.baseURL, shopID)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fields := map[string]string{
		"quantity":            strconv.Itoa(draft.Quantity),
		"title":               draft.Title,
		"description":         draft.Description,
		"price":               strconv.FormatFloat(draft.Price, 'f', 2, 64),
		"who_made":            draft.WhoMade,
		"when_made":           draft.WhenMade,
		"taxonomy_id":         strconv.FormatInt(draft.TaxonomyID, 10),
		"shipping_profile_id": strconv.FormatInt(draft.ShippingProfileID, 10),
		"processing_min":      strconv.Itoa(draft.ProcessingMin),
		"processing_max":      strconv.Itoa(draft.ProcessingMax),
		"is_personalizable":   strconv.FormatBool(draft.IsPersonalizable),
		"state":               "draft",
		"tags":                strings.Join(draft.Tags, ","),
		"materials":           strings.Join(draft.Materials, ","),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return 0, fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize form: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, endpoint, body, mw.FormDataContentType())
	if err != nil {
		return 0, err
	}

	var resp struct {
		ListingID int64 `json:"listing_id"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse create listing response: %w", err)
	}
	if resp.ListingID == 0 {
		return 0, fmt.Errorf("create listing response missing listing_id")
	}

	c.logger.Info("Draft listing created",
		slog.String("shop_id", shopID),
		slog.Int64("listing_id", resp.ListingID),
	)

	return resp.ListingID, nil
}

// UploadListingImage uploads one image with its 1-based rank and alt text,
// returning the marketplace image id.
func (c *Client) UploadListingImage(ctx context.Context, shopID string, listingID int64, img *listing.ImageAsset, rank int, altText string) (int64, error) {
	endpoint := fmt.Sprintf("%s/v3/application/shops/%s/listings/%d/images", c.baseURL, shopID, listingID)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("image", img.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to create image form part: %w", err)
	}
	if _, err := fw.Write(img.Data); err != nil {
		return 0, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := mw.WriteField("rank", strconv.Itoa(rank)); err != nil {
		return 0, fmt.Errorf("failed to write rank field: %w", err)
	}
	if err := mw.WriteField("alt_text", altText); err != nil {
		return 0, fmt.Errorf("failed to write alt_text field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize form: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, endpoint, body, mw.FormDataContentType())
	if err != nil {
		return 0, err
	}

	var resp struct {
		ListingImageID int64 `json:"listing_image_id"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse image upload response: %w", err)
	}

	return resp.ListingImageID, nil
}

// UploadListingVideo uploads the listing video and returns the marketplace
// video id.
func (c *Client) UploadListingVideo(ctx context.Context, shopID string, listingID int64, vid *listing.VideoAsset) (int64, error) {
	endpoint := fmt.Sprintf("%s/v3/application/shops/%s/listings/%d/videos", c.baseURL, shopID, listingID)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("video", vid.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to create video form part: %w", err)
	}
	if _, err := fw.Write(vid.Data); err != nil {
		return 0, fmt.Errorf("failed to write video data: %w", err)
	}
	if err := mw.WriteField("name", vid.Name); err != nil {
		return 0, fmt.Errorf("failed to write name field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize form: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, endpoint, body, mw.FormDataContentType())
	if err != nil {
		return 0, err
	}

	var resp struct {
		VideoID int64 `json:"video_id"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse video upload response: %w", err)
	}

	return resp.VideoID, nil
}

// UpdateInventory attaches variation rows to the listing. The marketplace
// expands rows into the full combinatorial inventory on its side.
func (c *Client) UpdateInventory(ctx context.Context, shopID string, listingID int64, variations []listing.Variation) error {
	endpoint := fmt.Sprintf("%s/v3/application/shops/%s/listings/%d/inventory", c.baseURL, shopID, listingID)

	payload, err := json.Marshal(map[string]any{"variations": variations})
	if err != nil {
		return fmt.Errorf("failed to marshal inventory payload: %w", err)
	}

	if _, err := c.do(ctx, http.MethodPut, endpoint, bytes.NewReader(payload), "application/json"); err != nil {
		return err
	}
	return nil
}

// ActivateListing flips a draft listing to active.
func (c *Client) ActivateListing(ctx context.Context, shopID string, listingID int64) error {
	endpoint := fmt.Sprintf("%s/v3/application/shops/%s/listings/%d", c.baseURL, shopID, listingID)

	form := url.Values{}
	form.Set("state", "active")

	if _, err := c.do(ctx, http.MethodPatch, endpoint, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded"); err != nil {
		return err
	}

	c.logger.Info("Listing activated",
		slog.String("shop_id", shopID),
		slog.Int64("listing_id", listingID),
	)
	return nil
}

// do issues one marketplace call with the configured deadline. A tracked
// throttle short-circuits before the wire; a live 429 feeds the tracker.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) ([]byte, error) {
	if c.limiter != nil && c.limiter.IsRateLimited(endpoint) {
		retryAfter := time.Duration(c.limiter.RetryAfterSeconds(endpoint)) * time.Second
		return nil, &RateLimitError{
			Endpoint:   ratelimit.EndpointKey(endpoint),
			RetryAfter: retryAfter,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("Marketplace call",
		slog.String("method", method),
		slog.String("endpoint", ratelimit.EndpointKey(endpoint)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		if c.limiter != nil {
			c.limiter.SetRateLimited(endpoint, int(retryAfter.Seconds()))
		}
		return nil, &RateLimitError{
			Endpoint:   ratelimit.EndpointKey(endpoint),
			RetryAfter: retryAfter,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBody), 512),
		}
	}

	return respBody, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return DefaultRetryAfter
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds <= 0 {
		return DefaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
