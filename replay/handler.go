package replay

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Handler struct {
	replayer Replayer
	logger   *zap.SugaredLogger
}

func NewHandler(replayer Replayer, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		replayer: replayer,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/errors/replay", h.Replay)
}

func (h *Handler) Replay(c echo.Context) error {
	var limit int64
	if value := c.QueryParam("limit"); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = parsed
	}

	summary, err := h.replayer.Replay(c.Request().Context(), c.QueryParam("discriminator"), limit)
	if err != nil {
		h.logger.Errorw("unable to replay failed submissions", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "unable to replay failed submissions")
	}
	return c.JSON(http.StatusOK, summary)
}
