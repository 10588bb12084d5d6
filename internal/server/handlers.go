package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/maauso/frameseq/internal/codec"
	"github.com/maauso/frameseq/internal/failure"
	"github.com/maauso/frameseq/internal/job"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.Service
	root               string
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateRender only queues the render.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance. Request paths are resolved
// under root and may not leave it.
func NewHandlers(service *job.Service, root string, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		root:               root,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if stats, err := hostStats(r.Context()); err != nil {
		h.logger.Debug("host stats unavailable", slog.String("error", err.Error()))
	} else {
		resp.Host = stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func hostStats(ctx context.Context) (*HostStats, error) {
	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &HostStats{
		CPUs:          cpus,
		MemoryTotal:   vm.Total,
		MemoryUsedPct: vm.UsedPercent,
	}, nil
}

// CreateRender handles POST /renders requests.
func (h *Handlers) CreateRender(w http.ResponseWriter, r *http.Request) {
	var req CreateRenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	cd, err := codec.Parse(req.Codec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	jobReq, err := h.renderRequest(req, cd)
	if err != nil {
		if !errors.Is(err, ErrPathNotAllowed) {
			h.logger.Error("failed to resolve render paths", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to create render", "RENDER_CREATION_FAILED")
			return
		}
		h.logger.Warn("render path rejected", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "PATH_NOT_ALLOWED")
		return
	}

	created, err := h.service.Submit(r.Context(), jobReq)
	if err != nil {
		if failure.KindOf(err) != failure.KindUnknown {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "BUILD_FAILED")
			return
		}
		h.logger.Error("failed to create render",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create render", "RENDER_CREATION_FAILED")
		return
	}

	// The render outlives the request.
	if h.enableAsyncProcess {
		go func(ctx context.Context, id string) {
			if _, err := h.service.Process(ctx, id); err != nil {
				h.logger.Error("background render failed",
					slog.String("render_id", id),
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), created.ID)
	}

	writeJSON(w, http.StatusAccepted, CreateRenderResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// renderRequest maps req onto paths under the render root.
func (h *Handlers) renderRequest(req CreateRenderRequest, cd codec.Codec) (job.Request, error) {
	images, err := resolvePath(h.root, req.ImagesDir)
	if err != nil {
		return job.Request{}, err
	}
	out := job.Request{
		ImagesDir:  images,
		OutputName: req.OutputName,
		FrameRate:  req.FrameRate,
		Codec:      cd,
	}
	if req.OutputDir != "" {
		if out.OutputDir, err = resolvePath(h.root, req.OutputDir); err != nil {
			return job.Request{}, err
		}
	}
	if req.OutputName != "" && !validFileName(req.OutputName) {
		return job.Request{}, fmt.Errorf("%w: %q", ErrPathNotAllowed, req.OutputName)
	}
	return out, nil
}

// GetRender handles GET /renders/{id} requests.
func (h *Handlers) GetRender(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "render ID is required", "MISSING_RENDER_ID")
		return
	}

	found, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "render not found", "RENDER_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get render",
			slog.String("render_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get render", "RENDER_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toRenderResponse(found))
}

// DeleteRender handles DELETE /renders/{id} requests. Only finished
// renders can be deleted.
func (h *Handlers) DeleteRender(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "render ID is required", "MISSING_RENDER_ID")
		return
	}

	err := h.service.Delete(r.Context(), id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "render not found", "RENDER_NOT_FOUND")
	case errors.Is(err, job.ErrNotTerminal):
		writeError(w, http.StatusConflict, err.Error(), "RENDER_IN_PROGRESS")
	default:
		h.logger.Error("failed to delete render",
			slog.String("render_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete render", "RENDER_DELETE_FAILED")
	}
}

// ListRenders handles GET /renders requests.
func (h *Handlers) ListRenders(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list renders", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list renders", "RENDER_FETCH_FAILED")
		return
	}

	resp := ListRendersResponse{Renders: make([]RenderResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Renders = append(resp.Renders, toRenderResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toRenderResponse(j *job.Job) RenderResponse {
	resp := RenderResponse{
		ID:          j.ID,
		Status:      string(j.Status),
		Info:        j.Info,
		ExitCode:    j.ExitCode,
		Message:     j.Message,
		Error:       j.Error,
		Location:    j.Location,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.Config != nil {
		resp.InputPattern = j.Config.InputPattern()
		resp.OutputPath = j.Config.OutputPath()
		resp.FrameRate = j.Config.FrameRate()
		resp.Codec = j.Config.Codec().String()
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
