// Package api is the request pipeline every flowctl call goes through.
//
// A Client resolves paths against the platform base URL, encodes JSON
// bodies, attaches the cached bearer token and unwraps the response
// envelope:
//
//	{"code": "OK", "message": "...", "data": {...}, "trace_id": "..."}
//
// On a 401 the client exchanges the refresh token once and repeats the
// request with the new access token. Idempotent requests (GET, HEAD,
// OPTIONS) are retried on 5xx responses and network failures with
// exponential backoff. Each attempt is bounded by a timeout; a request that
// runs out of time fails with code TIMEOUT and status 408.
//
// Every failure is returned as a *errors.APIError from pkg/errors:
//
//	var users []User
//	err := client.Get(ctx, "/admin/users", &users, api.WithParams(api.Params{"page": 1}))
//	if errors.IsCode(err, errors.CodeTokenExpired) {
//	    // prompt for login
//	}
package api
