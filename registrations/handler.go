package registrations

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.SugaredLogger
}

func NewHandler(service Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/registrations/:temporaryUuid", h.GetRegistration)
}

func (h *Handler) GetRegistration(c echo.Context) error {
	temporaryUuid := strings.TrimSpace(c.Param("temporaryUuid"))
	if temporaryUuid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "temporary uuid is required")
	}

	registration, err := h.service.Get(c.Request().Context(), temporaryUuid)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "registration not found")
	} else if err != nil {
		h.logger.Errorw("unable to get registration", "temporaryUuid", temporaryUuid, zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "unable to get registration")
	}
	return c.JSON(http.StatusOK, registration)
}
