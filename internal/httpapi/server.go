package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llmserve/internal/engine"
	"llmserve/internal/validate"
	"llmserve/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Initialize(ctx context.Context, p validate.InitParams) error
	Generate(ctx context.Context, p validate.GenerateParams) (string, error)
	Infer(ctx context.Context, p validate.InferenceParams) (string, error)
	Ready() bool
	Status() types.StatusResponse
}

// Mode selects which generation endpoints are served.
type Mode int

const (
	// ModeStateful serves POST /initialize and POST /generate against a
	// model kept between requests.
	ModeStateful Mode = iota
	// ModeOneShot serves POST /inf, which loads a model per request.
	ModeOneShot
)

func (m Mode) String() string {
	if m == ModeOneShot {
		return "oneshot"
	}
	return "stateful"
}

// NewMux builds the router for the given mode.
func NewMux(svc Service, mode Mode) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(corsOptions()))
	}

	switch mode {
	case ModeOneShot:
		r.Post("/inf", handleInfer(svc))
	default:
		r.Post("/initialize", handleInitialize(svc))
		r.Post("/generate", handleGenerate(svc))
	}

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// One-shot mode loads per request, so it is ready as soon as it listens.
		if mode == ModeOneShot || svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not initialized"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func corsOptions() cors.Options {
	methods := corsAllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	headers := corsAllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: methods,
		AllowedHeaders: headers,
		MaxAge:         300,
	}
}

// handleInitialize godoc
// @Summary      Download and load a model
// @Description  Downloads the Hugging Face repository snapshot and loads it, replacing the current model.
// @Tags         model
// @Accept       json
// @Produce      json
// @Param        request  body      types.InitializeRequest  true  "Model to load"
// @Success      200      {object}  types.MessageResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /initialize [post]
func handleInitialize(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rl := newReqLog(r)
		fields, ok := readFields(w, r, rl)
		if !ok {
			return
		}
		p, err := validate.Initialize(fields)
		if err != nil {
			reject(w, rl, err)
			return
		}
		rl.begin(map[string]any{"model": p.ModelID, "optimize": p.Optimize.String(), "flash_attn": p.FlashAttn})

		ctx, cancel := handlerContext(r, 0)
		defer cancel()
		if err := svc.Initialize(ctx, p); err != nil {
			fail(w, r, rl, err)
			return
		}
		writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Model initialized successfully"})
		rl.end(http.StatusOK, nil)
	}
}

// handleGenerate godoc
// @Summary      Generate text
// @Description  Runs generation on the model loaded by /initialize.
// @Tags         generate
// @Accept       json
// @Produce      json
// @Param        request  body      types.GenerateRequest  true  "Prompt and sampling parameters"
// @Success      200      {object}  types.GenerateResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Router       /generate [post]
func handleGenerate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rl := newReqLog(r)
		// Checked before the body is read.
		if !svc.Ready() {
			writeJSONError(w, http.StatusBadRequest, engine.ErrNotInitialized.Error())
			rl.end(http.StatusBadRequest, engine.ErrNotInitialized)
			return
		}
		fields, ok := readFields(w, r, rl)
		if !ok {
			return
		}
		p, err := validate.Generate(fields)
		if err != nil {
			reject(w, rl, err)
			return
		}
		rl.begin(map[string]any{"max_new_tokens": p.MaxNewTokens, "temperature": p.Temperature, "top_p": p.TopP})
		rl.debug("prompt", map[string]any{"prompt": p.Prompt})

		ctx, cancel := handlerContext(r, generateTimeout)
		defer cancel()
		text, err := svc.Generate(ctx, p)
		if err != nil {
			fail(w, r, rl, err)
			return
		}
		rl.debug("response", map[string]any{"response": text})
		writeJSON(w, http.StatusOK, types.GenerateResponse{Response: text})
		rl.end(http.StatusOK, nil)
	}
}

// handleInfer godoc
// @Summary      One-shot inference
// @Description  Downloads, loads and runs the model in a single request. The model is released afterwards.
// @Tags         generate
// @Accept       json
// @Produce      json
// @Param        request  body      types.InferenceRequest  true  "Model, prompt and sampling parameters"
// @Success      200      {object}  types.GenerateResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /inf [post]
func handleInfer(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rl := newReqLog(r)
		fields, ok := readFields(w, r, rl)
		if !ok {
			return
		}
		p, err := validate.Inference(fields)
		if err != nil {
			reject(w, rl, err)
			return
		}
		rl.begin(map[string]any{"model": p.Init.ModelID, "optimize": p.Init.Optimize.String(), "max_new_tokens": p.Generate.MaxNewTokens})
		rl.debug("prompt", map[string]any{"prompt": p.Generate.Prompt})

		ctx, cancel := handlerContext(r, generateTimeout)
		defer cancel()
		text, err := svc.Infer(ctx, p)
		if err != nil {
			fail(w, r, rl, err)
			return
		}
		rl.debug("response", map[string]any{"response": text})
		writeJSON(w, http.StatusOK, types.GenerateResponse{Response: text})
		rl.end(http.StatusOK, nil)
	}
}

// readFields decodes a JSON object body. It writes the error response itself
// and reports whether the handler may continue.
func readFields(w http.ResponseWriter, r *http.Request, rl *reqLog) (map[string]any, bool) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		rl.end(http.StatusUnsupportedMediaType, errors.New("unsupported content type"))
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		// Oversized bodies also land here; they get the same 400.
		incrementValidationReject("")
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		rl.end(http.StatusBadRequest, err)
		return nil, false
	}
	fields, ok := body.(map[string]any)
	if !ok {
		incrementValidationReject("")
		writeJSONError(w, http.StatusBadRequest, "JSON body must be an object")
		rl.end(http.StatusBadRequest, errors.New("non-object body"))
		return nil, false
	}
	return fields, true
}

func reject(w http.ResponseWriter, rl *reqLog, err error) {
	var ve *validate.Error
	if errors.As(err, &ve) {
		incrementValidationReject(ve.Field)
	}
	writeJSONError(w, http.StatusBadRequest, err.Error())
	rl.end(http.StatusBadRequest, err)
}

// fail maps a service error to a response. Nothing is written when the
// client went away or the server is shutting down.
func fail(w http.ResponseWriter, r *http.Request, rl *reqLog, err error) {
	if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
		rl.end(499, err)
		return
	}
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure(strings.TrimPrefix(r.URL.Path, "/"))
	}
	writeJSONError(w, status, err.Error())
	rl.end(status, err)
}
