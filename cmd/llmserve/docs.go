package main

// General API documentation for swaggo. Run `swag init -g cmd/llmserve/docs.go -o internal/docs` to regenerate.
//
// @title           llmserve API
// @version         1.0
// @description     HTTP API for downloading, loading and prompting Hugging Face language models.
//
// @contact.name   llmserve maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
