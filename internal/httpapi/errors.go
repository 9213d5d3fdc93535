package httpapi

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/hamitb/allbadcards/internal/game"
	"github.com/hamitb/allbadcards/internal/obslog"
	"github.com/hamitb/allbadcards/pkg/abcdto"
)

const headerCorrelationID = "X-Correlation-ID"

// httpError is a transport-level rejection (unknown route, wrong method).
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func routeError(status int, msg string) error { return &httpError{status: status, msg: msg} }

// classify maps an error to its status, code and client-safe message.
func classify(err error) (int, string, string) {
	var he *httpError
	if errors.As(err, &he) {
		code := "not_found"
		if he.status == fasthttp.StatusMethodNotAllowed {
			code = "method_not_allowed"
		}
		return he.status, code, he.msg
	}
	var ve abcdto.ValidationError
	if errors.As(err, &ve) {
		return fasthttp.StatusBadRequest, codeOf(game.KindInvalidInput), ve.Error()
	}
	kind := game.KindOf(err)
	switch kind {
	case game.KindNotFound:
		return fasthttp.StatusNotFound, codeOf(kind), game.Message(err)
	case game.KindForbidden:
		return fasthttp.StatusForbidden, codeOf(kind), game.Message(err)
	case game.KindInvalidState:
		return fasthttp.StatusConflict, codeOf(kind), game.Message(err)
	case game.KindInvalidInput:
		return fasthttp.StatusBadRequest, codeOf(kind), game.Message(err)
	default:
		return fasthttp.StatusInternalServerError, codeOf(game.KindFailure), "internal error"
	}
}

func codeOf(k game.Kind) string { return strings.ToLower(string(k)) }

func (s *Server) writeError(rc *fasthttp.RequestCtx, err error) {
	status, code, msg := classify(err)
	cid := uuid.NewString()
	fields := []zap.Field{
		zap.String("method", string(rc.Method())),
		zap.String("path", string(rc.Path())),
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("correlation_id", cid),
		zap.Error(err),
	}
	if status >= fasthttp.StatusInternalServerError {
		obslog.L().Error("request_failed", fields...)
	} else {
		obslog.L().Info("request_rejected", fields...)
	}
	rc.Response.Header.Set(headerCorrelationID, cid)
	s.writeJSON(rc, status, abcdto.ErrorBody{Error: msg, Code: code, CorrelationID: cid})
}
