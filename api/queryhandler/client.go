package queryhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/tee-confidential-query/api"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// Info retrieves the worker description from the GetInfo route of the worker
// at url. The returned public key is what query envelopes must be sealed to
// when the key registry is not consulted.
func Info(ctx context.Context, url string) (*api.InfoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(url, "/")+api.GetInfoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: could not request worker info: %w", interfaces.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, api.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: could not read worker info: %v", interfaces.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: worker returned error %d: %s", interfaces.ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info api.InfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("could not parse worker info: %w", err)
	}
	if len(info.WorkerPubkey) != 32 {
		return nil, fmt.Errorf("%w: worker public key must be 32 bytes, got %d", interfaces.ErrProtocolDecode, len(info.WorkerPubkey))
	}
	return &info, nil
}
