package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"backtest-workbench/internal/dto"
)

func (h *HttpAPIHandler) SetupBacktest(base *echo.Group) {
	backtestGroup := base.Group("/backtest")
	backtestGroup.GET("/runs", h.listRuns)
	backtestGroup.GET("/runs/:id", h.getRunDetail)
}

func (h *HttpAPIHandler) listRuns(c echo.Context) error {
	ctx := c.Request().Context()

	index, err := h.service.BacktestService.ListRuns(ctx)
	if err != nil {
		return c.JSON(http.StatusBadGateway, dto.NewBaseResponse(http.StatusBadGateway, "failed to load run index", nil))
	}

	return c.JSON(http.StatusOK, index)
}

func (h *HttpAPIHandler) getRunDetail(c echo.Context) error {
	ctx := c.Request().Context()

	runID := c.Param("id")
	if runID == "" {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("run id is required"))
	}

	// Absent artifacts are reported through the presence flags, so detail
	// assembly only fails when the request itself cannot be served.
	detail, err := h.service.BacktestService.GetRunDetail(ctx, runID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, dto.NewBaseResponse(http.StatusBadGateway, "failed to assemble run detail", nil))
	}

	return c.JSON(http.StatusOK, detail)
}
