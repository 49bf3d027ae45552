package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"backtest-workbench/internal/dto"
	"backtest-workbench/internal/service"
)

func (h *HttpAPIHandler) SetupScenarios(base *echo.Group) {
	scenarioGroup := base.Group("/scenarios")
	scenarioGroup.GET("", h.listScenarios)
	scenarioGroup.POST("", h.saveScenarios)
	scenarioGroup.POST("/validate_all", h.validateAll)
	scenarioGroup.POST("/:id/validate", h.validateScenario)
}

func (h *HttpAPIHandler) listScenarios(c echo.Context) error {
	ctx := c.Request().Context()

	scenarios, err := h.service.ValidationService.ListScenarios(ctx)
	if err != nil {
		return c.JSON(http.StatusBadGateway, dto.NewBaseResponse(http.StatusBadGateway, "failed to load scenarios", nil))
	}

	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", scenarios))
}

func (h *HttpAPIHandler) saveScenarios(c echo.Context) error {
	ctx := c.Request().Context()

	var scenarios []dto.Scenario
	if err := c.Bind(&scenarios); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid scenario payload"))
	}
	for _, scenario := range scenarios {
		if err := h.validator.Struct(scenario); err != nil {
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
		}
	}

	if err := h.service.ValidationService.SaveScenarios(ctx, scenarios); err != nil {
		return c.JSON(http.StatusBadGateway, dto.NewBaseResponse(http.StatusBadGateway, "failed to save scenarios", nil))
	}

	return c.JSON(http.StatusOK, dto.NewSuccessResponse("saved", nil))
}

func (h *HttpAPIHandler) validateScenario(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")
	report, err := h.service.ValidationService.ValidateScenarioByID(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrScenarioNotFound) {
			return c.JSON(http.StatusNotFound, dto.NewBaseResponse(http.StatusNotFound, err.Error(), nil))
		}
		return c.JSON(http.StatusBadGateway, dto.NewBaseResponse(http.StatusBadGateway, err.Error(), nil))
	}

	return c.JSON(http.StatusOK, report)
}

func (h *HttpAPIHandler) validateAll(c echo.Context) error {
	ctx := c.Request().Context()

	report, err := h.service.ValidationService.ValidateAll(ctx)
	if err != nil {
		return c.JSON(http.StatusBadGateway, dto.NewBaseResponse(http.StatusBadGateway, err.Error(), nil))
	}

	return c.JSON(http.StatusOK, report)
}
