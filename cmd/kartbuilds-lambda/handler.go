package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kathRex/kartbuilds/internal/api"
	"github.com/kathRex/kartbuilds/internal/builds"
	"github.com/kathRex/kartbuilds/internal/store"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

type buildRequest struct {
	Playstyle string `json:"playstyle,omitempty"`
	Stat      string `json:"stat,omitempty"`
	Track     string `json:"track,omitempty"`
	builds.Selection
}

type handler struct {
	svc    *builds.Service
	logger *slog.Logger
}

// handle serves POST /recommend, /best and /calculate plus GET /playstyles
// behind a function URL.
func (h *handler) handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	method := event.RequestContext.HTTP.Method
	path := strings.TrimSuffix(event.RawPath, "/")

	if method == http.MethodGet && path == "/playstyles" {
		return jsonResp(http.StatusOK, h.svc.Playstyles())
	}
	if method != http.MethodPost {
		return errResp(http.StatusMethodNotAllowed, "method not allowed")
	}

	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(http.StatusBadRequest, "invalid base64 body")
		}
		body = string(decoded)
	}

	var req buildRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return errResp(http.StatusBadRequest, "invalid JSON: "+err.Error())
	}

	var (
		rec *store.BuildRecord
		err error
	)
	switch path {
	case "/recommend":
		if req.Playstyle == "" {
			return errResp(http.StatusBadRequest, "missing playstyle")
		}
		rec, err = h.svc.Recommend(ctx, req.Playstyle, req.Track)
	case "/best":
		if req.Stat == "" {
			return errResp(http.StatusBadRequest, "missing stat")
		}
		rec, err = h.svc.BestForStat(ctx, req.Stat, req.Track)
	case "/calculate":
		sel := req.Selection
		sel.Track = req.Track
		rec, err = h.svc.Calculate(ctx, sel)
	default:
		return errResp(http.StatusNotFound, "unknown path "+event.RawPath)
	}
	if err != nil {
		status := api.ErrorStatus(err)
		if status >= 500 {
			h.logger.Error("build request failed", "path", path, "error", err)
		}
		msg := err.Error()
		if errors.Is(err, builds.ErrNoCombination) {
			msg = builds.ErrNoCombination.Error()
		}
		return errResp(status, msg)
	}
	return jsonResp(http.StatusOK, rec)
}

func jsonResp(code int, v interface{}) (events.LambdaFunctionURLResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return errResp(http.StatusInternalServerError, err.Error())
	}
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}
