package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"team-optimizer/internal/catalog"
	"team-optimizer/internal/engine"
)

// deadlineMargin is kept free at the end of an invocation to write the reply.
const deadlineMargin = 500 * time.Millisecond

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

type lambdaEvaluateRequest struct {
	Units     []string `json:"units"`
	Headliner string   `json:"headliner"`
}

type lambdaResult struct {
	engine.Outcome
	Detail string `json:"detail"`
}

type lambdaEvaluation struct {
	engine.Evaluation
	Detail string `json:"detail"`
}

// functionURLHandler serves POST /search (the default) and POST /evaluate
// behind a Lambda Function URL. Searches stop before the invocation deadline.
func functionURLHandler(eng *engine.Engine) func(context.Context, events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	return func(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
		body := event.Body
		if event.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(body)
			if err != nil {
				return errResp(http.StatusBadRequest, "invalid base64 body")
			}
			body = string(decoded)
		}
		if strings.TrimSpace(body) == "" {
			body = "{}"
		}

		if strings.HasSuffix(event.RawPath, "/evaluate") {
			var req lambdaEvaluateRequest
			if err := json.Unmarshal([]byte(body), &req); err != nil {
				return errResp(http.StatusBadRequest, "invalid JSON: "+err.Error())
			}
			ev, err := eng.Evaluate(req.Units, req.Headliner)
			if err != nil {
				return errResp(statusFor(err), err.Error())
			}
			return okResp(lambdaEvaluation{Evaluation: ev, Detail: ev.Text()})
		}

		var req engine.Request
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return errResp(http.StatusBadRequest, "invalid JSON: "+err.Error())
		}
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithDeadline(ctx, deadline.Add(-deadlineMargin))
			defer cancel()
		}
		out, err := eng.Run(ctx, req)
		if err != nil {
			return errResp(statusFor(err), err.Error())
		}
		if out.Cancelled {
			return errResp(http.StatusGatewayTimeout, "search did not finish before the deadline")
		}
		return okResp(lambdaResult{Outcome: out, Detail: out.Text()})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrSearchTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, catalog.ErrUnknownUnit),
		errors.Is(err, engine.ErrUnknownTrait),
		errors.Is(err, engine.ErrUnknownStrategy),
		errors.Is(err, engine.ErrInvalidTeamSize):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func okResp(v any) (events.LambdaFunctionURLResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return errResp(http.StatusInternalServerError, err.Error())
	}
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK, Headers: jsonHeader, Body: string(body)}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}
