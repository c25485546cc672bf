// Package validate turns untyped JSON request fields into typed, range-checked
// parameters. Every rejection is an *Error carrying a message suitable for
// returning to the client verbatim.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Defaults applied when a field is absent from the request.
const (
	DefaultPrompt            = "Hello!"
	DefaultMaxNewTokens      = 500
	DefaultTemperature       = 1.0
	DefaultTopP              = 1.0
	DefaultRepetitionPenalty = 1.0
)

// Optimize is the weight precision requested for a model load.
type Optimize string

const (
	Optimize4Bit  Optimize = "4-bit"
	Optimize8Bit  Optimize = "8-bit"
	Optimize16Bit Optimize = "16-bit"
	// OptimizeNone loads weights at full precision (JSON null).
	OptimizeNone Optimize = ""
)

// DefaultOptimize is used when the optimize field is absent.
const DefaultOptimize = Optimize4Bit

func (o Optimize) String() string {
	if o == OptimizeNone {
		return "none"
	}
	return string(o)
}

// Error is a client-facing validation failure.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string { return e.Msg }

// StatusCode maps validation failures to 400 Bad Request.
func (e *Error) StatusCode() int { return 400 }

func reject(field, format string, args ...any) error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// InitParams are the validated fields of an initialize request.
type InitParams struct {
	ModelID   string
	HFToken   string
	Optimize  Optimize
	FlashAttn bool
}

// LocalDir is the directory name the snapshot is stored under: the last
// path segment of the model id.
func (p InitParams) LocalDir() string {
	return lastSegment(p.ModelID)
}

// GenerateParams are the validated fields of a generate request.
type GenerateParams struct {
	Prompt            string
	MaxNewTokens      int
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
}

// InferenceParams combines both parameter sets for one-shot inference.
type InferenceParams struct {
	Init     InitParams
	Generate GenerateParams
}

// Initialize validates model_id, hf_token, optimize and use_flash_attn.
func Initialize(fields map[string]any) (InitParams, error) {
	var p InitParams

	id, err := ModelID(fields["model_id"])
	if err != nil {
		return p, err
	}
	p.ModelID = id

	if v, ok := fields["hf_token"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return p, reject("hf_token", "hf_token must be a string.")
		}
		p.HFToken = s
	}

	p.Optimize = DefaultOptimize
	if v, ok := fields["optimize"]; ok {
		o, err := parseOptimize(v)
		if err != nil {
			return p, err
		}
		p.Optimize = o
	}

	if v, ok := fields["use_flash_attn"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return p, reject("use_flash_attn", "use_flash_attn must be a boolean.")
		}
		p.FlashAttn = b
	}
	return p, nil
}

// Generate validates prompt and the sampling parameters, substituting
// defaults for absent fields.
func Generate(fields map[string]any) (GenerateParams, error) {
	p := GenerateParams{
		Prompt:            DefaultPrompt,
		MaxNewTokens:      DefaultMaxNewTokens,
		Temperature:       DefaultTemperature,
		TopP:              DefaultTopP,
		RepetitionPenalty: DefaultRepetitionPenalty,
	}

	if v, ok := fields["prompt"]; ok {
		s, isStr := v.(string)
		if !isStr {
			return p, reject("prompt", "prompt must be a string.")
		}
		p.Prompt = s
	}

	if v, ok := fields["max_new_tokens"]; ok {
		n, err := parseInt("max_new_tokens", v)
		if err != nil {
			return p, err
		}
		p.MaxNewTokens = n
	}
	var err error
	if p.Temperature, err = floatField(fields, "temperature", p.Temperature); err != nil {
		return p, err
	}
	if p.TopP, err = floatField(fields, "top_p", p.TopP); err != nil {
		return p, err
	}
	if p.RepetitionPenalty, err = floatField(fields, "repetition_penalty", p.RepetitionPenalty); err != nil {
		return p, err
	}

	if p.MaxNewTokens < 1 {
		return p, reject("max_new_tokens", "Max_new_tokens must be a positive number.")
	}
	if !inRange(p.Temperature, 0.0, 2.0) {
		return p, reject("temperature", "Temperature must be between 0.0 and 2.0.")
	}
	if !inRange(p.TopP, 0.0, 1.0) {
		return p, reject("top_p", "Top_p must be between 0.0 and 1.0.")
	}
	if !inRange(p.RepetitionPenalty, 0.0, 2.0) {
		return p, reject("repetition_penalty", "Repetition_penalty must be between 0.0 and 2.0.")
	}
	return p, nil
}

// Inference validates a combined one-shot request. Initialization fields are
// checked first.
func Inference(fields map[string]any) (InferenceParams, error) {
	ip, err := Initialize(fields)
	if err != nil {
		return InferenceParams{}, err
	}
	gp, err := Generate(fields)
	if err != nil {
		return InferenceParams{}, err
	}
	return InferenceParams{Init: ip, Generate: gp}, nil
}

// ModelID checks that v is a repository id whose last segment can serve as a
// local directory name.
func ModelID(v any) (string, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", reject("model_id", "model_id is required.")
	}
	s = strings.TrimSpace(s)
	switch seg := lastSegment(s); seg {
	case "", ".", "..":
		return "", reject("model_id", "model_id %q does not name a repository.", s)
	}
	if strings.ContainsAny(s, `\`) {
		return "", reject("model_id", "model_id %q does not name a repository.", s)
	}
	return s, nil
}

func lastSegment(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}

var allowedOptimize = []Optimize{Optimize4Bit, Optimize8Bit, Optimize16Bit}

func parseOptimize(v any) (Optimize, error) {
	if v == nil {
		return OptimizeNone, nil
	}
	if s, ok := v.(string); ok {
		for _, o := range allowedOptimize {
			if s == string(o) {
				return o, nil
			}
		}
	}
	return OptimizeNone, reject("optimize", "Invalid optimize value. Allowed values are [4-bit, 8-bit, 16-bit, null].")
}

// parseInt accepts JSON integers, JSON numbers with a fractional part
// (truncated toward zero) and strings holding a decimal integer.
func parseInt(field string, v any) (int, error) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return clampInt(field, float64(n))
		}
		f, err := x.Float64()
		if err != nil {
			return 0, reject(field, "%s must be an integer.", field)
		}
		return clampInt(field, math.Trunc(f))
	case float64:
		return clampInt(field, math.Trunc(x))
	case int:
		return x, nil
	case int64:
		return clampInt(field, float64(x))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, reject(field, "%s must be an integer.", field)
		}
		return n, nil
	}
	return 0, reject(field, "%s must be an integer.", field)
}

func clampInt(field string, f float64) (int, error) {
	if math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, reject(field, "%s must be an integer.", field)
	}
	return int(f), nil
}

func floatField(fields map[string]any, name string, def float64) (float64, error) {
	v, ok := fields[name]
	if !ok {
		return def, nil
	}
	return parseFloat(name, v)
}

func parseFloat(field string, v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, reject(field, "%s must be a number.", field)
		}
		return f, nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, reject(field, "%s must be a number.", field)
		}
		return f, nil
	}
	return 0, reject(field, "%s must be a number.", field)
}

// inRange is false for NaN.
func inRange(f, lo, hi float64) bool {
	return f >= lo && f <= hi
}
