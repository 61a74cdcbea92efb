// Package server exposes the webauthz client engine over HTTP.
//
// A host application puts this API behind its own authentication and passes
// the authenticated user id in a trusted header (X-Webauthz-User by
// default). Requests without the header are rejected with 401.
//
// # Endpoints
//
//	POST /v1/negotiations                  start a negotiation from a WWW-Authenticate value
//	GET  /v1/negotiations/:client_state    observe an access request
//	GET  /v1/grant                         grant redirect target (client_id, client_state, grant_token)
//	POST /v1/exchange                      exchange a grant token or refresh
//	GET  /v1/token?resource_uri=           resolve the access token for a resource
//	GET  /healthz                          liveness
//
// Engine errors map to status codes by kind: not found 404, access denied
// 403, invalid request 400, failures talking to an authorization server 502
// and storage errors 500. Response bodies carry only the kind.
package server
