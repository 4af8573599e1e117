package controller

import (
	"errors"
	"net/http"
	"strconv"

	"winsentry/internal/dto"
	"winsentry/internal/model"
	"winsentry/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// StatusReporter reports the refresh loop state.
type StatusReporter interface {
	Status() dto.MonitorStatusResponse
}

type SnapshotController struct {
	snapshotQueryService service.SnapshotQueryService
	diagnosticsService   service.DiagnosticsService
	monitor              StatusReporter
}

func NewSnapshotController(
	snapshotQueryService service.SnapshotQueryService,
	diagnosticsService service.DiagnosticsService,
	monitor StatusReporter,
) *SnapshotController {
	return &SnapshotController{
		snapshotQueryService: snapshotQueryService,
		diagnosticsService:   diagnosticsService,
		monitor:              monitor,
	}
}

func RegisterSnapshotRoutes(router *gin.Engine, controller *SnapshotController) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/snapshot", controller.GetSnapshot)
		v1.GET("/snapshot/timeline", controller.GetTimeline)
		v1.GET("/status", controller.GetStatus)
		v1.GET("/diagnostics", controller.GetDiagnostics)
	}
}

// GetSnapshot godoc
// @Summary      Get the latest snapshot
// @Description  Returns the most recently published failed-logon snapshot: totals, top offender, reason histogram, timeline and newest records.
// @Tags         snapshot
// @Accept       json
// @Produce      json
// @Param        granularity query     string  false  "Timeline bucket size (default: configured granularity)" Enums(second, minute, hour, day)
// @Param        limit       query     int     false  "Maximum number of records (default: configured record limit, max: 1000)" minimum(1) maximum(1000)
// @Success      200         {object}  dto.SnapshotResponse "Latest snapshot"
// @Failure      400         {object}  model.Response "Invalid query parameters"
// @Failure      503         {object}  model.Response "No snapshot published yet"
// @Router       /api/v1/snapshot [get]
func (c *SnapshotController) GetSnapshot(ctx *gin.Context) {
	limit, err := parseOptionalInt(ctx.Query("limit"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid limit. Use a positive integer.", nil))
		return
	}
	req := dto.SnapshotRequest{
		Granularity: ctx.Query("granularity"),
		Limit:       limit,
	}

	result, err := c.snapshotQueryService.GetSnapshot(req)
	if err != nil {
		c.writeQueryError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetTimeline godoc
// @Summary      Get the failure timeline
// @Description  Re-buckets the retained records of the latest snapshot at the requested granularity.
// @Tags         snapshot
// @Accept       json
// @Produce      json
// @Param        granularity query     string  false  "Timeline bucket size" Enums(second, minute, hour, day)
// @Success      200         {object}  dto.TimelineResponse "Timeline points"
// @Failure      400         {object}  model.Response "Invalid query parameters"
// @Failure      503         {object}  model.Response "No snapshot published yet"
// @Router       /api/v1/snapshot/timeline [get]
func (c *SnapshotController) GetTimeline(ctx *gin.Context) {
	result, err := c.snapshotQueryService.GetTimeline(dto.TimelineRequest{Granularity: ctx.Query("granularity")})
	if err != nil {
		c.writeQueryError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetStatus godoc
// @Summary      Get monitor status
// @Description  Returns the refresh loop state, last cycle timing and the access-denied remediation when monitoring is halted.
// @Tags         monitor
// @Produce      json
// @Success      200 {object} dto.MonitorStatusResponse "Monitor status"
// @Router       /api/v1/status [get]
func (c *SnapshotController) GetStatus(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.monitor.Status())
}

// GetDiagnostics godoc
// @Summary      Tail the program log
// @Description  Returns the last lines of the program's own log file.
// @Tags         monitor
// @Produce      json
// @Param        lines query     int  false  "Number of lines (default: 20, max: 500)" minimum(1) maximum(500)
// @Success      200   {object}  dto.DiagnosticsResponse "Log lines, oldest first"
// @Failure      400   {object}  model.Response "Invalid query parameters"
// @Failure      500   {object}  model.Response "Internal server error"
// @Router       /api/v1/diagnostics [get]
func (c *SnapshotController) GetDiagnostics(ctx *gin.Context) {
	lines, err := parseOptionalInt(ctx.Query("lines"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid lines. Use a positive integer.", nil))
		return
	}
	result, err := c.diagnosticsService.Tail(lines)
	if err != nil {
		log.Error().Err(err).Msg("Error reading diagnostics")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Failed to read log file", nil))
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (c *SnapshotController) writeQueryError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownGranularity):
		ctx.JSON(http.StatusBadRequest, model.NewResponse(err.Error(), nil))
	case errors.Is(err, service.ErrNoSnapshot):
		ctx.JSON(http.StatusServiceUnavailable, model.NewResponse(err.Error(), c.monitor.Status()))
	default:
		log.Error().Err(err).Msg("Error getting snapshot")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Failed to get snapshot", nil))
	}
}

func parseOptionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("must be a positive integer")
	}
	return n, nil
}
