package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/controllers/boilercontroller"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/store"
	"github.com/thatsimonsguy/hydronic-controller/internal/zone"
)

// BoilerStatus reports the boiler aggregator's most recent poll.
type BoilerStatus interface {
	Last() *boilercontroller.Status
}

type Server struct {
	zones  map[string]*zone.Zone
	order  []string
	boiler BoilerStatus
	store  store.Store
	router *gin.Engine
	srv    *http.Server
}

type ZoneSetpointRequest struct {
	Setpoint *float64 `json:"setpoint"`
}

type ZoneModeRequest struct {
	Mode string `json:"mode"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(port int, zones []*zone.Zone, boiler BoilerStatus, st store.Store) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		zones:  map[string]*zone.Zone{},
		boiler: boiler,
		store:  st,
		router: gin.New(),
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	for _, z := range zones {
		s.zones[z.Name] = z
		s.order = append(s.order, z.Name)
	}

	s.router.Use(gin.Recovery(), requestLogger(), cors())
	s.router.GET("/healthz", s.health)

	api := s.router.Group("/api")
	{
		api.GET("/zones", s.getZones)
		api.GET("/zones/:name", s.getZone)
		api.PUT("/zones/:name/setpoint", s.setZoneSetpoint)
		api.PUT("/zones/:name/mode", s.setZoneMode)
		api.GET("/boiler", s.getBoiler)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called. After Stop it returns nil at once.
func (s *Server) Start() error {
	log.Info().Str("address", s.srv.Addr).Msg("Starting REST API server")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "zones": len(s.zones)})
}

func (s *Server) getZones(c *gin.Context) {
	out := make([]zone.Snapshot, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.zones[name].Snapshot())
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getZone(c *gin.Context) {
	z, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, z.Snapshot())
}

func (s *Server) setZoneSetpoint(c *gin.Context) {
	z, ok := s.lookup(c)
	if !ok {
		return
	}

	var req ZoneSetpointRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Setpoint == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON: setpoint required"})
		return
	}

	topic := store.TargetTemperature(z.SensorPath)
	if err := store.SetAndPublish(c.Request.Context(), s.store, topic, store.EncodeSetpoint(*req.Setpoint)); err != nil {
		log.Error().Err(err).Str("zone", z.Name).Msg("Failed to publish setpoint")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Failed to update setpoint"})
		return
	}

	log.Info().Str("zone", z.Name).Float64("setpoint", *req.Setpoint).Msg("Zone setpoint updated via API")
	c.JSON(http.StatusOK, gin.H{"zone": z.Name, "setpoint": *req.Setpoint})
}

func (s *Server) setZoneMode(c *gin.Context) {
	z, ok := s.lookup(c)
	if !ok {
		return
	}

	var req ZoneModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}
	mode, err := model.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	topic := store.TargetHeatingCoolingState(z.SensorPath)
	if err := store.SetAndPublish(c.Request.Context(), s.store, topic, store.EncodeMode(mode)); err != nil {
		log.Error().Err(err).Str("zone", z.Name).Msg("Failed to publish demand mode")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Failed to update mode"})
		return
	}

	log.Info().Str("zone", z.Name).Str("mode", mode.String()).Msg("Zone demand mode updated via API")
	c.JSON(http.StatusOK, gin.H{"zone": z.Name, "mode": mode})
}

func (s *Server) getBoiler(c *gin.Context) {
	if s.boiler == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Boiler not configured"})
		return
	}
	st := s.boiler.Last()
	if st == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Boiler not polled yet"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) lookup(c *gin.Context) (*zone.Zone, bool) {
	z, ok := s.zones[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Zone not found"})
	}
	return z, ok
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("API request")
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
