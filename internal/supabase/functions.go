package supabase

import (
	"context"
	"net/http"
)

// Invoke calls the edge function name with a JSON body and decodes its JSON
// response into out when out is non-nil.
func (c *Client) Invoke(ctx context.Context, name string, body, out interface{}) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/functions/v1/"+name, nil, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}
