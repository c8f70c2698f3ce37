package api

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/ridepool/internal/cache"
	"github.com/passbi/ridepool/internal/db"
	"github.com/passbi/ridepool/internal/dispatch"
	"github.com/passbi/ridepool/internal/input"
	"github.com/passbi/ridepool/internal/models"
	"github.com/passbi/ridepool/internal/report"
)

// ResultCache memoizes simulation results by input
type ResultCache interface {
	GetResult(ctx context.Context, key string) (*dispatch.Result, error)
	SetResult(ctx context.Context, key string, result *dispatch.Result) error
	AcquireLock(ctx context.Context, key string) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
	WaitForResult(ctx context.Context, key string, maxWait time.Duration) (*dispatch.Result, error)
	HealthCheck(ctx context.Context) error
}

// RunArchive stores finished runs
type RunArchive interface {
	SaveRun(ctx context.Context, run *db.Run) error
	GetRun(ctx context.Context, id string) (*db.Run, error)
	HealthCheck(ctx context.Context) error
}

// Handler serves the simulation API. Cache and archive are optional;
// without them every request is computed and nothing is stored.
type Handler struct {
	cache  ResultCache
	runs   RunArchive
	limits dispatch.Limits
}

// NewHandler creates a handler. Pass nil for unavailable backends.
func NewHandler(resultCache ResultCache, runs RunArchive, limits dispatch.Limits) *Handler {
	return &Handler{
		cache:  resultCache,
		runs:   runs,
		limits: limits,
	}
}

// Register mounts the API routes
func (h *Handler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/v1/formats", h.Formats)
	router.Post("/v1/simulations", h.CreateSimulation)
	router.Get("/v1/simulations/:id", h.GetSimulation)
}

// SimulationRequest is the JSON body of POST /v1/simulations
type SimulationRequest struct {
	Params  models.Params   `json:"params"`
	Demands []models.Demand `json:"demands"`
}

// SimulationResponse is the JSON answer of a simulation run
type SimulationResponse struct {
	RunID      string                        `json:"run_id,omitempty"`
	Cached     bool                          `json:"cached"`
	Rides      []models.RideRecord           `json:"rides"`
	Stats      report.Stats                  `json:"stats"`
	Rejections map[dispatch.RejectReason]int `json:"rejections,omitempty"`
	Error      string                        `json:"error,omitempty"`
}

// CreateSimulation handles POST /v1/simulations
func (h *Handler) CreateSimulation(c *fiber.Ctx) error {
	sim, err := parseRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ctx := c.UserContext()
	result, cached, runErr := h.simulate(ctx, sim)
	if result == nil {
		return fiber.NewError(fiber.StatusBadRequest, runErr.Error())
	}

	runID := h.archive(ctx, sim.Params, result, runErr)
	if runID != "" {
		c.Set("X-Run-ID", runID)
	}

	status := fiber.StatusOK
	if runErr != nil {
		log.Printf("Simulation failed: %v", runErr)
		status = fiber.StatusUnprocessableEntity
	}

	format := c.Query("format", "json")
	if format != "json" {
		formatter := report.GetFormatter(format)
		var buf bytes.Buffer
		if err := formatter.Write(&buf, result); err != nil {
			return err
		}
		if runErr != nil {
			c.Set("X-Simulation-Error", runErr.Error())
		}
		c.Set(fiber.HeaderContentType, formatter.ContentType())
		return c.Status(status).Send(buf.Bytes())
	}

	rides := result.Records
	if rides == nil {
		rides = []models.RideRecord{}
	}
	resp := SimulationResponse{
		RunID:      runID,
		Cached:     cached,
		Rides:      rides,
		Stats:      report.Summarize(result.Records, result.Demands),
		Rejections: result.Rejections,
	}
	if runErr != nil {
		resp.Error = runErr.Error()
	}

	return c.Status(status).JSON(resp)
}

// simulate runs a simulation, going through the result cache when available
func (h *Handler) simulate(ctx context.Context, sim *input.Simulation) (*dispatch.Result, bool, error) {
	if h.cache == nil {
		result, err := dispatch.Simulate(sim.Params, h.limits, sim.Demands, nil)
		return result, false, err
	}

	key := cache.SimulationKey(sim.Params, h.limits, sim.Demands)

	if cached, err := h.cache.GetResult(ctx, key); err == nil && cached != nil {
		return cached, true, nil
	}

	acquired, err := h.cache.AcquireLock(ctx, key)
	if err != nil {
		log.Printf("Failed to acquire lock: %v", err)
		// Continue without lock (degrade gracefully)
	} else if !acquired {
		// Another request is computing the same input
		if cached, err := h.cache.WaitForResult(ctx, key, 3*time.Second); err == nil && cached != nil {
			return cached, true, nil
		}
	}

	defer func() {
		if acquired {
			if err := h.cache.ReleaseLock(ctx, key); err != nil {
				log.Printf("Failed to release lock: %v", err)
			}
		}
	}()

	result, runErr := dispatch.Simulate(sim.Params, h.limits, sim.Demands, nil)
	if runErr == nil {
		if err := h.cache.SetResult(ctx, key, result); err != nil {
			log.Printf("Failed to cache result: %v", err)
		}
	}

	return result, false, runErr
}

// archive stores the run and returns its ID, or "" when not archived
func (h *Handler) archive(ctx context.Context, params models.Params, result *dispatch.Result, runErr error) string {
	if h.runs == nil {
		return ""
	}

	run := db.NewRun(params, h.limits, result, runErr)
	if err := h.runs.SaveRun(ctx, run); err != nil {
		log.Printf("Failed to archive run: %v", err)
		return ""
	}
	return run.ID
}

// GetSimulation handles GET /v1/simulations/:id
func (h *Handler) GetSimulation(c *fiber.Ctx) error {
	if h.runs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "run archive unavailable",
		})
	}

	run, err := h.runs.GetRun(c.UserContext(), c.Params("id"))
	if errors.Is(err, db.ErrRunNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "simulation run not found",
		})
	}
	if err != nil {
		log.Printf("Failed to load run: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	return c.JSON(run)
}

// Formats handles GET /v1/formats
func (h *Handler) Formats(c *fiber.Ctx) error {
	formatters := report.GetAllFormatters()
	names := make([]string, 0, len(formatters))
	for _, f := range formatters {
		names = append(names, f.Name())
	}
	return c.JSON(fiber.Map{
		"formats": names,
	})
}

// Health handles the /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx := c.UserContext()

	dbStatus, dbErr := check(ctx, h.runs)
	redisStatus, redisErr := check(ctx, h.cache)

	// Overall status
	status := "healthy"
	httpStatus := fiber.StatusOK
	if dbErr != nil || redisErr != nil {
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func check(ctx context.Context, backend healthChecker) (string, error) {
	if backend == nil {
		return "disabled", nil
	}
	if err := backend.HealthCheck(ctx); err != nil {
		return err.Error(), err
	}
	return "ok", nil
}

// parseRequest reads either a JSON body or the plain text input format
func parseRequest(c *fiber.Ctx) (*input.Simulation, error) {
	contentType := strings.ToLower(string(c.Request().Header.ContentType()))

	if strings.HasPrefix(contentType, fiber.MIMETextPlain) {
		sim, err := input.ParseSimulation(bytes.NewReader(c.Body()))
		if err != nil {
			return nil, err
		}
		sim.Demands = input.ValidateDemands(sim.Demands)
		return sim, nil
	}

	var req SimulationRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}

	sim := &input.Simulation{
		Params:  req.Params,
		Demands: input.ValidateDemands(req.Demands),
	}
	sim.Params.DemandCount = len(sim.Demands)
	return sim, nil
}

// ErrorHandler handles errors returned from handlers
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// NotFound answers requests to unknown endpoints
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "endpoint not found",
	})
}
