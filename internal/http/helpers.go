package http

import (
	"context"
	"errors"
	"net/http"

	"obras/internal/core"
	"obras/internal/middleware/trace"
)

// StatusFor maps an engine error to its HTTP status: rejected input is the
// caller's fault, a failed store read is an upstream failure.
func StatusFor(err error) int {
	var dse *core.DataSourceError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.As(err, &dse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse builds the envelope for err. Only invalid-argument messages
// reach the client verbatim.
func errorResponse(err error, requestID string) *ResponseBuilder {
	switch StatusFor(err) {
	case http.StatusBadRequest:
		return BadRequestError(err.Error(), requestID)
	case http.StatusBadGateway:
		return BadGatewayError("data source unavailable", requestID)
	default:
		return InternalServerError("internal error", requestID)
	}
}

// failureBody is a skipped project as reported to API clients.
type failureBody struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
}

func failureBodies(failures []core.ProjectFailure) []failureBody {
	if len(failures) == 0 {
		return nil
	}
	out := make([]failureBody, len(failures))
	for i, f := range failures {
		out[i] = failureBody{ProjectID: f.ProjectID, Name: f.Name, Reason: f.Reason()}
	}
	return out
}

func requestID(ctx context.Context) string {
	return trace.GetRequestID(ctx)
}
