// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteBadRequest(w, "environment is required")
//	httputil.WriteBadGateway(w, "upstream request failed")
//	httputil.WriteAttachment(w, contentType, "saml_connections_qa.xlsx", body)
//
// Every error body has the shape {"error": "<message>"}.
//
// # Query Parameters
//
//	env := httputil.ParseQueryString(r, "env", "")
//	populate, ok := httputil.ParseQueryBoolOrError(w, r, "populate", false)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//		httputil.CORSMiddleware(origins),
//	)
package httputil
