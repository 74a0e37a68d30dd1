package http_handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/config"
	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/domain"
	"github.com/anthanhphan/go-memcached-cluster/internal/gateway/port"
	"github.com/anthanhphan/go-memcached-cluster/pkg/cluster"
	"github.com/anthanhphan/go-memcached-cluster/pkg/protocol"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	headerFlags = "X-Cache-Flags"
	headerCAS   = "X-Cache-CAS"
)

type Server struct {
	app     *fiber.App
	cfg     *config.Config
	service port.CacheService
}

func NewServer(cfg *config.Config, service port.CacheService, gatherer prometheus.Gatherer) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             int(cfg.App.MaxValueSize),
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{
		app:     app,
		cfg:     cfg,
		service: service,
	}

	s.registerRoutes(gatherer)

	return s
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.app.Get("/health", s.handleHealth)
	if gatherer != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	clusters := s.app.Group("/clusters/:name")
	clusters.Get("/nodes", s.handleNodes)
	clusters.Get("/stats", s.handleStats)
	clusters.Post("/flush", s.handleFlush)
	clusters.Get("/keys/:key", s.handleGet)
	clusters.Put("/keys/:key", s.handleStore)
	clusters.Delete("/keys/:key", s.handleDelete)
	clusters.Post("/keys/:key/incr", s.handleCounter(false))
	clusters.Post("/keys/:key/decr", s.handleCounter(true))
}

// App exposes the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// sendServiceError maps service and cluster errors onto HTTP statuses.
func (s *Server) sendServiceError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, port.ErrClusterNotFound), errors.Is(err, protocol.ErrKeyNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, port.ErrInvalidRequest), errors.Is(err, protocol.ErrKeyTooLong),
		errors.Is(err, protocol.ErrInvalidArguments), errors.Is(err, protocol.ErrNonNumeric):
		status = fiber.StatusBadRequest
	case errors.Is(err, protocol.ErrKeyExists), errors.Is(err, protocol.ErrNotStored):
		status = fiber.StatusConflict
	case errors.Is(err, protocol.ErrValueTooLarge):
		status = fiber.StatusRequestEntityTooLarge
	case errors.Is(err, cluster.ErrNoAliveNodes), errors.Is(err, cluster.ErrIO), errors.Is(err, cluster.ErrClusterClosed):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusGatewayTimeout
	}
	if status == fiber.StatusInternalServerError {
		sdklogger.Errorw("Request failed", "path", c.Path(), "error", err.Error())
	}
	return s.sendJSONError(c, status, err.Error())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	clusters := s.service.Clusters()
	status := "ok"
	for _, h := range clusters {
		if h.Alive == 0 {
			status = "degraded"
		}
	}
	return c.JSON(fiber.Map{
		"status":   status,
		"clusters": clusters,
	})
}

func (s *Server) handleNodes(c *fiber.Ctx) error {
	nodes, err := s.service.Nodes(c.Params("name"))
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(nodes)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.service.Stats(c.Context(), c.Params("name"))
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(stats)
}

func (s *Server) handleFlush(c *fiber.Ctx) error {
	if err := s.service.Flush(c.Context(), c.Params("name")); err != nil {
		return s.sendServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	item, err := s.service.Get(c.Context(), c.Params("name"), c.Params("key"))
	if err != nil {
		return s.sendServiceError(c, err)
	}

	c.Set(headerFlags, strconv.FormatUint(uint64(item.Flags), 10))
	c.Set(headerCAS, strconv.FormatUint(item.CAS, 10))
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(item.Value)
}

func (s *Server) handleStore(c *fiber.Ctx) error {
	req := domain.StoreRequest{
		Key:   c.Params("key"),
		Value: append([]byte(nil), c.Body()...),
		Mode:  c.Query("mode", "set"),
	}

	var err error
	if req.TTL, err = queryUint32(c, "ttl"); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
	}
	if req.Flags, err = headerUint32(c, headerFlags); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
	}
	if req.CAS, err = headerUint64(c, headerCAS); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
	}

	cas, err := s.service.Store(c.Context(), c.Params("name"), req)
	if err != nil {
		return s.sendServiceError(c, err)
	}
	c.Set(headerCAS, strconv.FormatUint(cas, 10))
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	if err := s.service.Delete(c.Context(), c.Params("name"), c.Params("key")); err != nil {
		return s.sendServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleCounter(decrement bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := domain.CounterRequest{
			Key:       c.Params("key"),
			Delta:     1,
			NoCreate:  c.QueryBool("nocreate", false),
			Decrement: decrement,
		}

		var err error
		if v := c.Query("delta"); v != "" {
			if req.Delta, err = strconv.ParseUint(v, 10, 64); err != nil {
				return s.sendJSONError(c, fiber.StatusBadRequest, "invalid 'delta' query parameter")
			}
		}
		if v := c.Query("initial"); v != "" {
			if req.Initial, err = strconv.ParseUint(v, 10, 64); err != nil {
				return s.sendJSONError(c, fiber.StatusBadRequest, "invalid 'initial' query parameter")
			}
		}
		if req.TTL, err = queryUint32(c, "ttl"); err != nil {
			return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
		}

		value, err := s.service.Counter(c.Context(), c.Params("name"), req)
		if err != nil {
			return s.sendServiceError(c, err)
		}
		return c.JSON(fiber.Map{
			"key":   req.Key,
			"value": value,
		})
	}
}

func queryUint32(c *fiber.Ctx, name string) (uint32, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, errors.New("invalid '" + name + "' query parameter")
	}
	return uint32(n), nil
}

func headerUint32(c *fiber.Ctx, name string) (uint32, error) {
	v := c.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, errors.New("invalid " + name + " header")
	}
	return uint32(n), nil
}

func headerUint64(c *fiber.Ctx, name string) (uint64, error) {
	v := c.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name + " header")
	}
	return n, nil
}
