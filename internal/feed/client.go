package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudvance/flightpredict/pkg/logger"
)

// Client is responsible for fetching aircraft snapshot batches from the feed
type Client struct {
	httpClient *http.Client
	sourceType string
	sourceURL  string
	logger     *logger.Logger
}

// NewClient creates a new feed client
func NewClient(sourceType, sourceURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		sourceType: sourceType,
		sourceURL:  sourceURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Named("feed-cli"),
	}
}

// FetchBatch fetches one batch of snapshots from the configured source.
// An empty batch is a valid result, not an error.
func (c *Client) FetchBatch(ctx context.Context) ([]Snapshot, error) {
	body, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	switch c.sourceType {
	case "vrs":
		return c.parseVRS(body)
	case "readsb":
		return c.parseReadsb(body)
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.sourceType)
	}
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching aircraft snapshots",
		logger.String("url", c.sourceURL),
		logger.String("source_type", c.sourceType),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

func (c *Client) parseVRS(body []byte) ([]Snapshot, error) {
	var data VRSResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	snapshots := make([]Snapshot, 0, len(data.AcList))
	for i := range data.AcList {
		snapshots = append(snapshots, data.AcList[i].Convert())
	}

	c.logger.Debug("Successfully fetched VRS snapshot batch",
		logger.Int("aircraft_count", len(snapshots)))

	return snapshots, nil
}

func (c *Client) parseReadsb(body []byte) ([]Snapshot, error) {
	var data ReadsbResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	snapshots := make([]Snapshot, 0, len(data.Aircraft))
	for i := range data.Aircraft {
		snapshots = append(snapshots, data.Aircraft[i].Convert())
	}

	c.logger.Debug("Successfully fetched readsb snapshot batch",
		logger.Int("aircraft_count", len(snapshots)))

	return snapshots, nil
}
