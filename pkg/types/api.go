package types

// InitializeRequest is the documented shape of POST /initialize. The server
// decodes bodies into an untyped map so that type errors surface as
// validation messages; this struct exists for API docs and clients.
type InitializeRequest struct {
	// Hugging Face repository id.
	// example: TinyLlama/TinyLlama-1.1B-Chat-v1.0-GGUF
	ModelID string `json:"model_id" example:"TinyLlama/TinyLlama-1.1B-Chat-v1.0-GGUF"`
	// Optional access token for gated or private repositories.
	HFToken string `json:"hf_token,omitempty"`
	// Weight precision: 4-bit, 8-bit, 16-bit or null. Defaults to 4-bit.
	// example: 4-bit
	Optimize *string `json:"optimize,omitempty" example:"4-bit"`
	// Opaque flash attention flag passed to the runtime.
	// example: false
	UseFlashAttn bool `json:"use_flash_attn,omitempty" example:"false"`
}

// GenerateRequest is the documented shape of POST /generate.
type GenerateRequest struct {
	// Prompt text. Defaults to "Hello!".
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt,omitempty" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens (>= 1). Defaults to 500.
	// example: 128
	MaxNewTokens int `json:"max_new_tokens,omitempty" example:"128"`
	// Sampling temperature in [0, 2]. Defaults to 1.0.
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability in [0, 1]. Defaults to 1.0.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Repetition penalty in [0, 2]. Defaults to 1.0.
	// example: 1.1
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty" example:"1.1"`
}

// InferenceRequest is the documented shape of POST /inf: initialization and
// generation fields in one body.
type InferenceRequest struct {
	InitializeRequest
	GenerateRequest
}

// MessageResponse is returned by POST /initialize on success.
type MessageResponse struct {
	// example: Model initialized successfully
	Message string `json:"message" example:"Model initialized successfully"`
}

// GenerateResponse is returned by POST /generate and POST /inf on success.
type GenerateResponse struct {
	// Generated text.
	Response string `json:"response"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: Temperature must be between 0.0 and 2.0.
	Error string `json:"error" example:"Temperature must be between 0.0 and 2.0."`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Engine state: idle, loading, ready or error.
	// example: ready
	State string `json:"state" example:"ready"`
	// Currently loaded model, if any.
	Model *LoadedModel `json:"model,omitempty"`
	// Last error observed by the engine (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of successful model loads.
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// Total number of completed generations.
	// example: 42
	GenerationsTotal uint64 `json:"generations_total" example:"42"`
}
