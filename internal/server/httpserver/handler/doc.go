// Package handler implements the stockgate HTTP API.
//
// Handlers decode the request, call the auth or token service and encode
// the result. Every failure is written as the structured error body:
//
//	{"error_code": "...", "message": "...", "timestamp": "...", "request_id": "..."}
//
// Routes lists each endpoint together with the access it requires, so the
// router can wrap it in the matching middleware chain.
package handler
