package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pmorrisey/njord/internal/domain"
	"github.com/pmorrisey/njord/internal/journal"
)

// OperatorHandler exposes the settlement journal's failure records. This
// is where an operator finds the authorization reference for a paid
// checkout that produced no order.
type OperatorHandler struct {
	journal journal.Journal
	logger  zerolog.Logger
}

func NewOperatorHandler(j journal.Journal, logger zerolog.Logger) *OperatorHandler {
	return &OperatorHandler{
		journal: j,
		logger:  logger.With().Str("component", "operator_handler").Logger(),
	}
}

// Failures handles GET /operator/settlement-failures.
func (h *OperatorHandler) Failures(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	entries, err := h.journal.ListFailures(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list settlement failures")
		return ErrorResponse(c, domain.Internal(err, "operator.failures", "Failed to list settlement failures"))
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"authorization_id": e.AuthorizationID,
			"state":            e.State,
			"failure_reason":   e.FailureReason,
			"amount_minor":     e.AmountMinor,
			"currency":         e.Currency,
			"created_at":       e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"failures": out})
}
