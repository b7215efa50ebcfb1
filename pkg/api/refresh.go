package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	flowlog "github.com/tombee/flowctl/internal/log"
	flowerrors "github.com/tombee/flowctl/pkg/errors"
)

// ErrNoRefreshToken is returned by Refresh when no refresh token is stored.
var ErrNoRefreshToken = errors.New("no refresh token available")

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges the stored refresh token for a new token pair. On any
// failure the stored tokens are cleared.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refresh(ctx, c.tokens.RefreshToken(ctx))
}

// refreshIfStale refreshes unless another request already replaced the
// access token that was rejected, in which case the caller just retries.
// The refresh token is read before the access token so a concurrent
// rotation is always observed by one of the two reads.
func (c *Client) refreshIfStale(ctx context.Context, rejected string) error {
	token := c.tokens.RefreshToken(ctx)
	if current := c.tokens.AccessToken(ctx); current != "" && current != rejected {
		return nil
	}
	return c.refresh(ctx, token)
}

// refresh coalesces concurrent exchanges of the same refresh token. The
// exchange itself is detached from ctx so one caller giving up does not
// fail the others.
func (c *Client) refresh(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoRefreshToken
	}

	ch := c.refreshGroup.DoChan(token, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		// A flight that finished just before this one may already have
		// rotated or cleared the pair.
		switch current := c.tokens.RefreshToken(rctx); {
		case current == "":
			return nil, ErrNoRefreshToken
		case current != token:
			return nil, nil
		}

		err := c.exchangeRefreshToken(rctx, token)
		c.metrics.recordRefresh(err == nil)
		return nil, err
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// exchangeRefreshToken calls the refresh endpoint directly through the
// transport, bypassing the 401 handling and retries of the pipeline.
func (c *Client) exchangeRefreshToken(ctx context.Context, token string) error {
	fail := func(err error) error {
		c.logger.Warn("token refresh failed", flowlog.CodeKey, flowerrors.CodeOf(err), "error", err)
		if clearErr := c.tokens.Clear(ctx); clearErr != nil {
			c.logger.Warn("failed to clear tokens after refresh failure", "error", clearErr)
		}
		return err
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: token})
	if err != nil {
		return fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+RefreshPath, bytes.NewReader(body))
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return fail(err)
	}
	if !resp.ok() {
		return fail(resp.err())
	}

	rawData, ok := resp.payload.fields["data"]
	if !ok {
		return fail(flowerrors.NewAPIError(flowerrors.CodeRequestFailed, "refresh response has no data", resp.status))
	}
	var pair refreshResult
	if err := json.Unmarshal(rawData, &pair); err != nil || pair.AccessToken == "" || pair.RefreshToken == "" {
		return fail(flowerrors.NewAPIError(flowerrors.CodeRequestFailed, "refresh response is missing tokens", resp.status))
	}

	if err := c.tokens.Set(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		// The new pair is cached even when persisting it fails.
		c.logger.Warn("refreshed tokens were not persisted", "error", err)
	}
	c.logger.Debug("access token refreshed", "access_token", flowlog.SanitizeToken(pair.AccessToken))
	return nil
}
