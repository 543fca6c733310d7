// Package docs provides generated OpenAPI documentation.
//
// Redline API
//
//	@title			Redline API
//	@version		1.0
//	@description	Narrative continuity analysis API for running, pausing, and reviewing chapter checks.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/proseforge/redline
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:9184
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/redline/serve.go -o ./swagger --parseDependency --parseInternal
