package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"patentes-service/internal/config"
	"patentes-service/internal/repository"
	"patentes-service/internal/service"
)

type Handler struct {
	queryService *service.QueryService
	config       *config.Config
	log          zerolog.Logger
}

func NewHandler(
	queryService *service.QueryService,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		queryService: queryService,
		config:       cfg,
		log:          log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api")
	{
		public.GET("/latest_images", h.latestImages)
		public.GET("/search_plate", h.searchPlate)
		public.GET("/images_by_datetime", h.imagesByDatetime)
		public.GET("/all_patents", h.allPatents)
		public.GET("/stats", h.stats)
		public.GET("/recent_thumbnails", h.recentThumbnails)
		public.GET("/event_images/:event_id", h.eventImages)
		public.GET("/images", h.imagesKeyset)
	}

	// Protected endpoints (raw byte access and the export feed)
	protected := r.Group("/api")
	protected.Use(authMiddleware)
	{
		protected.GET("/image/:image_id/raw", h.imageRaw)
		protected.GET("/images/feed", h.imageFeed)
	}
}

func (h *Handler) latestImages(c *gin.Context) {
	limit := queryInt(c, "limit", 5)

	images, err := h.queryService.LatestImages(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, images)
}

func (h *Handler) searchPlate(c *gin.Context) {
	plate := strings.TrimSpace(c.Query("plate"))
	if plate == "" {
		c.JSON(http.StatusBadRequest, errorResponse("missing 'plate' query parameter"))
		return
	}

	results, err := h.queryService.SearchPlate(c.Request.Context(), plate, queryInt(c, "limit", 50))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) imagesByDatetime(c *gin.Context) {
	start := strings.TrimSpace(c.Query("start_datetime"))
	end := strings.TrimSpace(c.Query("end_datetime"))
	if start == "" || end == "" {
		c.JSON(http.StatusBadRequest, errorResponse("missing 'start_datetime' or 'end_datetime' query parameter"))
		return
	}

	results, err := h.queryService.ImagesByDateRange(c.Request.Context(), start, end, queryInt(c, "limit", 500))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) allPatents(c *gin.Context) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 10)

	filters := repository.Filters{
		Search:    strings.TrimSpace(c.Query("search_term")),
		Brands:    splitCSV(c.Query("brand")),
		Colors:    splitCSV(c.Query("color")),
		Types:     splitCSV(c.Query("type")),
		StartDate: strings.TrimSpace(c.Query("start_date")),
		EndDate:   strings.TrimSpace(c.Query("end_date")),
	}
	if mc := strings.TrimSpace(c.Query("min_confidence")); mc != "" {
		if v, err := strconv.ParseFloat(mc, 64); err == nil {
			filters.MinConfidence = &v
		}
	}

	result, err := h.queryService.ListPatents(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) stats(c *gin.Context) {
	result, err := h.queryService.Stats(c.Request.Context(),
		strings.TrimSpace(c.Query("start_date")),
		strings.TrimSpace(c.Query("end_date")))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) recentThumbnails(c *gin.Context) {
	thumbnails, err := h.queryService.RecentThumbnails(c.Request.Context(), queryInt(c, "limit", 8))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, thumbnails)
}

func (h *Handler) eventImages(c *gin.Context) {
	images, err := h.queryService.EventImages(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if len(images) == 0 {
		c.JSON(http.StatusNotFound, errorResponse("no images found for this event_id"))
		return
	}
	c.JSON(http.StatusOK, images)
}

func (h *Handler) imagesKeyset(c *gin.Context) {
	params := service.KeysetParams{
		CursorTS:  strings.TrimSpace(c.Query("cursor_ts")),
		CursorID:  strings.TrimSpace(c.Query("cursor_id")),
		Direction: strings.TrimSpace(c.Query("direction")),
		Limit:     queryInt(c, "limit", 20),
		Types:     splitCSV(c.Query("types")),
		Search:    strings.TrimSpace(c.Query("search_term")),
		StartDate: strings.TrimSpace(c.Query("start_date")),
		EndDate:   strings.TrimSpace(c.Query("end_date")),
	}

	page, err := h.queryService.ImagesKeyset(c.Request.Context(), params)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) imageRaw(c *gin.Context) {
	img, err := h.queryService.ImageRaw(c.Request.Context(), c.Param("image_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if img.Data == nil {
		c.JSON(http.StatusNotFound, errorResponse("image has no stored payload"))
		return
	}

	contentType := "application/octet-stream"
	if img.FileName != nil {
		switch {
		case strings.HasSuffix(strings.ToLower(*img.FileName), ".png"):
			contentType = "image/png"
		case strings.HasSuffix(strings.ToLower(*img.FileName), ".jpg"),
			strings.HasSuffix(strings.ToLower(*img.FileName), ".jpeg"):
			contentType = "image/jpeg"
		}
	}
	c.Header("X-Image-Type", string(img.Type))
	c.Data(http.StatusOK, contentType, img.Data)
}

func (h *Handler) imageFeed(c *gin.Context) {
	items, err := h.queryService.ImageFeed(c.Request.Context(), strings.TrimSpace(c.Query("since")))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// handleError maps the engine's failure taxonomy onto HTTP statuses.
// Exhaustion and store failures both present as a temporarily-unavailable
// condition; only server-side logs tell them apart.
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMalformedInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not found"))
	case errors.Is(err, repository.ErrPoolExhausted):
		h.log.Warn().Err(err).Msg("connection pool exhausted")
		c.JSON(http.StatusServiceUnavailable, errorResponse("service temporarily unavailable"))
	case errors.Is(err, repository.ErrStoreFailed):
		h.log.Error().Err(err).Msg("store operation failed")
		c.JSON(http.StatusServiceUnavailable, errorResponse("service temporarily unavailable"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	if raw := c.Query(name); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
