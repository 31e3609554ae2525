package browser

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

var probeClient = &http.Client{Timeout: 2 * time.Second}

// Probe checks that a DevTools endpoint answers on host:port.
func Probe(ctx context.Context, host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/json/version", nil)
	if err != nil {
		return err
	}

	resp, err := probeClient.Do(req)
	if err != nil {
		if IsConnectionRefused(err) {
			return fmt.Errorf("%w: %s", ErrConnectionRefused, addr)
		}
		return fmt.Errorf("probe %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: unexpected status %d", addr, resp.StatusCode)
	}
	return nil
}
