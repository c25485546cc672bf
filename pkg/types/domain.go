package types

// LoadedModel describes the model held by the engine.
type LoadedModel struct {
	// Hugging Face repository id the model was downloaded from.
	// example: TinyLlama/TinyLlama-1.1B-Chat-v1.0-GGUF
	ID string `json:"id" example:"TinyLlama/TinyLlama-1.1B-Chat-v1.0-GGUF"`
	// Local snapshot directory.
	// example: /home/user/models/TinyLlama-1.1B-Chat-v1.0-GGUF
	Path string `json:"path" example:"/home/user/models/TinyLlama-1.1B-Chat-v1.0-GGUF"`
	// Precision the model was loaded with (4-bit, 8-bit, 16-bit or none).
	// example: 4-bit
	Optimize string `json:"optimize" example:"4-bit"`
	// Whether flash attention was requested.
	FlashAttn bool `json:"use_flash_attn"`
	// Unique id of this load.
	// example: 0b8e6c2e-8a7e-4a53-a2b3-3f1a9d3f6f10
	SessionID string `json:"session_id" example:"0b8e6c2e-8a7e-4a53-a2b3-3f1a9d3f6f10"`
	// Load completion time (unix seconds).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
}

// Snapshot is a model repository already present under the models directory.
type Snapshot struct {
	// Directory name, the last segment of the repository id.
	Name string `json:"name"`
	Path string `json:"path"`
	// GGUF weight files relative to Path.
	Weights   []string `json:"weights"`
	Files     int      `json:"files"`
	SizeBytes int64    `json:"size_bytes"`
	// Files still being downloaded.
	Partial int `json:"partial,omitempty"`
}
