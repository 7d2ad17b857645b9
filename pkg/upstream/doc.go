// Package upstream fetches collections from the PingFederate admin API.
//
// Every call is a single authenticated GET of
// {base_url}/pf-admin-api/v1/{resource} whose body must be a JSON object with
// an "items" array. Each item is returned as a raw Record for the normalizer.
//
//	client := upstream.NewClient(upstream.WithLogger(logger), upstream.WithMetrics(metrics))
//	records, err := client.FetchCollection(ctx, env, upstream.ResourceDataStores)
//
// Failures are typed so callers can classify them:
//
//   - *TransportError: connection failure, TLS failure, body read failure
//   - *ResponseError: non-2xx status, carries the status code
//   - *ParseError: body is not JSON or has no "items" array
//
// There are no retries and no timeout unless WithTimeout is given.
package upstream
