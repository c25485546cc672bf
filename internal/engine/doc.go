// Package engine owns the loaded model and coordinates access to it.
// It is structured into small files by concern:
//
//   - engine.go: Engine type, constructor, Initialize/Generate/Infer.
//   - config.go: Config and package defaults.
//   - types.go: State and the loaded session.
//   - errors.go: error types and helpers (IsTooBusy, IsNotInitialized).
//   - admission.go: the single execution slot shared by loads and generation.
//   - status.go: Status/Ready reporting.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus instruments.
//
// External packages should use the public methods only.
package engine
