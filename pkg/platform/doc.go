// Package platform wraps the admin and auth endpoints of the platform API
// in typed services built on pkg/api.
//
//	client, _ := api.New(baseURL, api.WithTokenStore(tokens))
//	p := platform.New(client)
//	if _, err := p.Auth.Login(ctx, email, password); err != nil {
//	    return err
//	}
//	users, err := p.Users.List(ctx, platform.UserListParams{Status: "active"})
//
// Go field names are camel case; the JSON tags carry the snake_case keys the
// backend expects. List methods return api.List regardless of which list
// shape the endpoint answers with. Empty filter fields are not sent.
package platform
