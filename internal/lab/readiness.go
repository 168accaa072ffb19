package lab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrNotReady means the endpoint never answered within the deadline.
	ErrNotReady = errors.New("endpoint not ready before deadline")
	// ErrExitedEarly means the supervised process died while we were
	// still waiting for it to come up.
	ErrExitedEarly = errors.New("process exited before becoming ready")
)

// WaitReady polls url until it answers with a non-5xx status, the
// process exits, or the timeout elapses. Polling backs off
// exponentially so a slow external server is not hammered during
// startup.
func WaitReady(ctx context.Context, url string, proc *Process, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = timeout

	probe := func() error {
		if proc != nil && proc.Exited() {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrExitedEarly, proc.Wait()))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}

	if err := backoff.Retry(probe, backoff.WithContext(bo, ctx)); err != nil {
		if errors.Is(err, ErrExitedEarly) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrNotReady, url, err)
	}
	return nil
}
