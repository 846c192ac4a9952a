package api

import (
	"errors"
	"net/http"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatBusy, core.ErrCatState:
		return http.StatusConflict, true
	case core.ErrCatToolDisabled:
		return http.StatusForbidden, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	case core.ErrCatAdapter, core.ErrCatParse, core.ErrCatFallbackExhausted:
		if domErr.Code == core.CodeRateLimited {
			return http.StatusTooManyRequests, true
		}
		return http.StatusBadGateway, true
	case core.ErrCatConfig, core.ErrCatMissingTool:
		return http.StatusServiceUnavailable, true
	default:
		return http.StatusInternalServerError, true
	}
}
