package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tjfontaine/jarvis/internal/command"
	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
)

const maxBodyBytes = 64 << 10

type handlers struct {
	commands *command.Service
	ha       ports.HomeAssistant
	build    BuildInfo
	started  time.Time
	logger   *slog.Logger
}

type errorBody struct {
	RequestID string           `json:"requestId"`
	Error     domain.ErrorCode `json:"error"`
	Message   string           `json:"message"`
	Param     string           `json:"param,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		apiErr = domain.ErrServer("internal error")
	}
	code := apiErr.Code
	if code == "" {
		code = domain.ErrorCode(apiErr.Type)
	}
	writeJSON(w, apiErr.HTTPStatusCode(), errorBody{
		RequestID: GetRequestID(r.Context()),
		Error:     code,
		Message:   apiErr.Message,
		Param:     apiErr.Param,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidRequest("request body must be a JSON object")
	}
	return nil
}

func (h *handlers) command(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req command.Request
	if err := decodeBody(w, r, &req); err != nil {
		AddError(ctx, err)
		writeError(w, r, err)
		return
	}

	env, err := h.commands.Handle(ctx, GetRequestID(ctx), req)
	if err != nil {
		AddError(ctx, err)
		var apiErr *domain.APIError
		if !errors.As(err, &apiErr) {
			h.logger.ErrorContext(ctx, "command failed", slog.String("error", err.Error()))
		}
		writeError(w, r, err)
		return
	}

	AddLogField(ctx, "skill", env.Skill)
	AddLogField(ctx, "intent", env.Intent)
	AddLogField(ctx, "mode", string(env.Mode))
	writeJSON(w, http.StatusOK, env)
}

type serviceRequest struct {
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	Target      map[string]any `json:"target,omitempty"`
	ServiceData map[string]any `json:"serviceData,omitempty"`
}

type serviceResponse struct {
	RequestID string `json:"requestId"`
	Status    int    `json:"status"`
	Data      any    `json:"data"`
}

func (h *handlers) haService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req serviceRequest
	if err := decodeBody(w, r, &req); err != nil {
		AddError(ctx, err)
		writeError(w, r, err)
		return
	}
	req.Domain = strings.TrimSpace(req.Domain)
	req.Service = strings.TrimSpace(req.Service)
	if req.Domain == "" || req.Service == "" {
		writeError(w, r, domain.ErrInvalidRequest("domain and service are required"))
		return
	}
	if h.ha == nil {
		writeError(w, r, domain.ErrUpstream("home assistant is not configured"))
		return
	}

	AddLogField(ctx, "service", req.Domain+"."+req.Service)
	resp, err := h.ha.CallService(ctx, ports.ServiceCallRequest{
		Domain:      req.Domain,
		Service:     req.Service,
		Target:      req.Target,
		ServiceData: req.ServiceData,
	})
	if err != nil {
		AddError(ctx, err)
		writeError(w, r, domain.ErrUpstream(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, serviceResponse{
		RequestID: GetRequestID(ctx),
		Status:    resp.Status,
		Data:      resp.Data,
	})
}

type healthBuild struct {
	SHA  string `json:"sha,omitempty"`
	Time string `json:"time,omitempty"`
}

type healthResponse struct {
	Status    string      `json:"status"`
	Version   string      `json:"version"`
	Uptime    float64     `json:"uptime"`
	Timestamp string      `json:"timestamp"`
	Build     healthBuild `json:"build"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   h.build.Version,
		Uptime:    now.Sub(h.started).Seconds(),
		Timestamp: now.UTC().Format(time.RFC3339),
		Build:     healthBuild{SHA: h.build.SHA, Time: h.build.Time},
	})
}
