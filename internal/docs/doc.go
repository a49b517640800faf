// Package docs serves the API description.
//
// The OpenAPI document is embedded as YAML and also served as JSON. JSON
// Schemas for the three record kinds are generated from the Go types, so
// they always match what the store accepts and returns.
package docs
