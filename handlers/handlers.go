package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"safemap/apperrors"
	"safemap/auth"
	"safemap/database"
	"safemap/feed"
	"safemap/geoloc"
	"safemap/markers"
	"safemap/metrics"
	"safemap/middleware"
	"safemap/models"
	"safemap/rabbitmq"
	"safemap/uploads"
	ws "safemap/websocket"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

// NearestFinder resolves the closest police station to a coordinate.
type NearestFinder interface {
	FindNearestPolice(ctx context.Context, lat, lng float64) (models.PoliceStation, error)
}

// EventPublisher emits report lifecycle events to downstream consumers.
type EventPublisher interface {
	PublishReportEvent(event string, report models.Report) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	store      *database.ReportStore
	profiles   *database.ProfileStore
	sync       *feed.Synchronizer
	hub        *ws.Hub
	locator    NearestFinder
	projection *markers.Projection
	uploads    *uploads.Store
	publisher  EventPublisher
	gate       auth.Gate
	deviceFeed *geoloc.DeviceFeed
	resolver   *geoloc.Resolver
}

// NewHandlers creates a new handlers instance. The publisher and locator
// may be nil when the corresponding collaborator is not configured.
func NewHandlers(
	store *database.ReportStore,
	profiles *database.ProfileStore,
	sync *feed.Synchronizer,
	hub *ws.Hub,
	locator NearestFinder,
	projection *markers.Projection,
	uploadStore *uploads.Store,
	publisher EventPublisher,
	gate auth.Gate,
	deviceFeed *geoloc.DeviceFeed,
	resolver *geoloc.Resolver,
) *Handlers {
	return &Handlers{
		store:      store,
		profiles:   profiles,
		sync:       sync,
		hub:        hub,
		locator:    locator,
		projection: projection,
		uploads:    uploadStore,
		publisher:  publisher,
		gate:       gate,
		deviceFeed: deviceFeed,
		resolver:   resolver,
	}
}

// CreateReportResponse is the payload returned by POST /reports. The
// station and warning fields describe the secondary lookup for unsafe
// reports; they never affect the committed write.
type CreateReportResponse struct {
	Report         models.Report         `json:"report"`
	NearestStation *models.PoliceStation `json:"nearest_police_station,omitempty"`
	Warning        string                `json:"warning,omitempty"`
}

// CreateReport handles POST /api/v3/reports.
func (h *Handlers) CreateReport(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	// The UI hides the entry point for ineligible users, but that is not
	// a security boundary; the capability is re-checked here.
	if !session.CanCreate(h.gate) {
		c.JSON(http.StatusForbidden, gin.H{"error": "report creation requires a verified contributor profile"})
		return
	}

	var input models.ReportInput
	if err := c.BindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	report, err := h.store.CreateReport(c.Request.Context(), session.UserID, session.Profile.DisplayName, input)
	if err != nil {
		if apperrors.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("Failed to create report: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create report"})
		return
	}
	metrics.ReportsCreatedTotal.WithLabelValues(string(report.Type)).Inc()

	if h.publisher != nil {
		if err := h.publisher.PublishReportEvent(rabbitmq.EventReportCreated, report); err != nil {
			log.Errorf("Failed to publish report.created: %v", err)
		}
	}

	response := CreateReportResponse{Report: report}

	// The write above is committed; the station lookup is a follow-up for
	// unsafe reports and its failure degrades to a warning.
	if report.Type == models.ReportUnsafe && h.locator != nil {
		station, err := h.locator.FindNearestPolice(c.Request.Context(), report.Latitude, report.Longitude)
		switch {
		case err == nil:
			metrics.LocatorLookupsTotal.WithLabelValues("ok").Inc()
			response.NearestStation = &station
		case errors.Is(err, apperrors.ErrNotFound):
			metrics.LocatorLookupsTotal.WithLabelValues("not_found").Inc()
			response.Warning = "no police stations found within 5km of the reported location"
		default:
			metrics.LocatorLookupsTotal.WithLabelValues("error").Inc()
			log.Warnf("Nearest station lookup failed: %v", err)
			response.Warning = "nearest police station lookup is currently unavailable"
		}
	}

	c.JSON(http.StatusCreated, response)
}

// ListReports handles GET /api/v3/reports.
func (h *Handlers) ListReports(c *gin.Context) {
	reports, err := h.store.ListAllReports(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list reports: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// MyReports handles GET /api/v3/reports/mine.
func (h *Handlers) MyReports(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	reports, err := h.store.ListReportsByAuthor(c.Request.Context(), session.UserID)
	if err != nil {
		log.Errorf("Failed to list reports for %s: %v", session.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// DeleteReport handles DELETE /api/v3/reports/:id. Deleting an absent
// report succeeds; deleting another author's report is denied.
func (h *Handlers) DeleteReport(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id := c.Param("id")

	report, err := h.store.GetReport(c.Request.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		log.Errorf("Failed to load report %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete report"})
		return
	}

	if err := h.store.DeleteReport(c.Request.Context(), id, session.UserID); err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the author may delete a report"})
			return
		}
		log.Errorf("Failed to delete report %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete report"})
		return
	}
	metrics.ReportsDeletedTotal.Inc()

	if h.publisher != nil {
		if err := h.publisher.PublishReportEvent(rabbitmq.EventReportDeleted, report); err != nil {
			log.Errorf("Failed to publish report.deleted: %v", err)
		}
	}

	c.Status(http.StatusNoContent)
}

// NearestPolice handles GET /api/v3/police/nearest?lat=..&lng=..
func (h *Handlers) NearestPolice(c *gin.Context) {
	if h.locator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "places provider not configured"})
		return
	}

	lat, lng, ok := parseLatLng(c)
	if !ok {
		return
	}

	station, err := h.locator.FindNearestPolice(c.Request.Context(), lat, lng)
	switch {
	case err == nil:
		metrics.LocatorLookupsTotal.WithLabelValues("ok").Inc()
		c.JSON(http.StatusOK, station)
	case errors.Is(err, apperrors.ErrNotFound):
		metrics.LocatorLookupsTotal.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "no police stations found nearby"})
	case errors.Is(err, apperrors.ErrBadConfig):
		metrics.LocatorLookupsTotal.WithLabelValues("error").Inc()
		log.Errorf("Places misconfiguration: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "places provider misconfigured"})
	default:
		metrics.LocatorLookupsTotal.WithLabelValues("error").Inc()
		log.Errorf("Nearest station lookup failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "places provider unavailable"})
	}
}

// Markers handles GET /api/v3/reports/markers, serving the GeoJSON
// projection of the current snapshot.
func (h *Handlers) Markers(c *gin.Context) {
	c.JSON(http.StatusOK, h.projection.FeatureCollection())
}

// PublishPosition handles POST /api/v3/position: the device posts a new
// fix, which moves the live-position marker and wakes pending locates.
func (h *Handlers) PublishPosition(c *gin.Context) {
	var fix struct {
		Latitude       float64 `json:"latitude"`
		Longitude      float64 `json:"longitude"`
		AccuracyMeters float64 `json:"accuracy_meters"`
	}
	if err := c.BindJSON(&fix); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if fix.Latitude < -90 || fix.Latitude > 90 || fix.Longitude < -180 || fix.Longitude > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates out of range"})
		return
	}

	h.projection.SetLivePosition(fix.Latitude, fix.Longitude)
	h.deviceFeed.Publish(fix.Latitude, fix.Longitude, fix.AccuracyMeters)
	c.Status(http.StatusAccepted)
}

// Locate handles GET /api/v3/position/locate. mode=passive mirrors the
// silent auto-locate on page load; the default user-initiated mode
// surfaces a categorized error when no fix arrives in time.
func (h *Handlers) Locate(c *gin.Context) {
	if c.DefaultQuery("mode", "user") == "passive" {
		pos, ok := h.resolver.AutoLocate(c.Request.Context())
		if !ok {
			c.JSON(http.StatusOK, gin.H{"located": false})
			return
		}
		h.projection.SetLivePosition(pos.Latitude, pos.Longitude)
		c.JSON(http.StatusOK, gin.H{"located": true, "latitude": pos.Latitude, "longitude": pos.Longitude})
		return
	}

	pos, err := h.resolver.Locate(c.Request.Context())
	if err != nil {
		code, _ := geoloc.Code(err)
		switch code {
		case geoloc.PermissionDenied:
			c.JSON(http.StatusForbidden, gin.H{"error": "location permission denied"})
		case geoloc.Timeout:
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "location request timed out"})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "position unavailable"})
		}
		return
	}

	h.projection.SetLivePosition(pos.Latitude, pos.Longitude)
	c.JSON(http.StatusOK, gin.H{"located": true, "latitude": pos.Latitude, "longitude": pos.Longitude})
}

// WebSocket upgrader
var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect cross-origin from the map frontend.
		return true
	},
}

// ListenReports handles WebSocket connections for the live snapshot feed.
func (h *Handlers) ListenReports(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	log.Debug("WebSocket connection established")
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	connectedClients, lastSnapshotSize := h.hub.GetStats()

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:           "healthy",
		Service:          "safemap",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ConnectedClients: connectedClients,
		LastSnapshotSize: lastSnapshotSize,
	})
}

func parseLatLng(c *gin.Context) (float64, float64, bool) {
	latStr, hasLat := c.GetQuery("lat")
	lngStr, hasLng := c.GetQuery("lng")
	if !hasLat || !hasLng {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lat parameter"})
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lng parameter"})
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates out of range"})
		return 0, 0, false
	}
	return lat, lng, true
}
