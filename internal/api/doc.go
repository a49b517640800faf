// Package api implements the HTTP REST API and WebSocket server for the library service.
//
// This package provides:
//   - CRUD endpoints for books, members and loans, one generic handler set per kind
//   - Whole-store export and import of the backing document
//   - Health, JSON and Prometheus metrics, and the audit trail listing
//   - Librarian token issue and an optional bearer guard on mutating requests
//   - WebSocket hub streaming store changes to subscribed clients
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, rate limit)
//
// # Errors
//
// Every failure is a JSON body of the form
//
//	{"error": {"code": "conflict", "message": "...", "details": {...}}}
//
// with the message repeated in the X-Error-Message header. Store errors are
// mapped by errors.Is: validation 400, missing record 404, duplicate key or
// unknown reference 409, persistence failure 500.
//
// # Graceful Degradation
//
// MQTT, InfluxDB, the audit trail and authentication are all optional. The
// server runs with only a store; absent components report "disabled" in
// the health check.
package api
