package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uselagoon/keycloak-authz/internal/authz"
)

// rawAdmin performs a rate limited GET request against the admin API of the
// realm and returns the raw JSON response. The elements of p are appended to
// the realm admin path. A 404 response is returned as authz.ErrNotFound.
func (c *Client) rawAdmin(
	ctx context.Context,
	requestType string,
	query url.Values,
	p ...string,
) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("couldn't wait for limiter: %v", err)
	}
	timer := prometheus.NewTimer(
		keycloakRequestLatencyVec.WithLabelValues(requestType))
	defer timer.ObserveDuration()
	u := c.baseURL.JoinPath(append([]string{"admin", "realms", c.realm}, p...)...)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't construct %s request: %v", requestType, err)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("couldn't perform %s request: %v", requestType, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", authz.ErrNotFound, u.Path)
	}
	if res.StatusCode > 299 {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("bad %s response: %d\n%s",
			requestType, res.StatusCode, body)
	}
	return io.ReadAll(res.Body)
}

// getAdmin performs rawAdmin and unmarshals the response into v.
func (c *Client) getAdmin(
	ctx context.Context,
	requestType string,
	query url.Values,
	v any,
	p ...string,
) error {
	data, err := c.rawAdmin(ctx, requestType, query, p...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("couldn't unmarshal %s response: %v", requestType, err)
	}
	return nil
}
