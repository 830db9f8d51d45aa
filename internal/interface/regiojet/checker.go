// Package regiojet implements the seat availability checker against the
// provider's public REST API.
package regiojet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/pkg/logger"

	"github.com/sethvargo/go-retry"
)

// HTTPClient is the interface for performing HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Checker queries the provider for free seats on a route segment
type Checker struct {
	client     HTTPClient
	baseURL    string
	bookingURL string
	timeout    time.Duration
	retries    int
	logger     logger.Logger
}

// NewChecker creates a checker. retries is the number of in-call retry
// attempts for transient transport failures on top of the first try.
func NewChecker(client HTTPClient, baseURL, bookingURL string, timeout time.Duration, retries int, logger logger.Logger) *Checker {
	return &Checker{
		client:     client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		bookingURL: strings.TrimRight(bookingURL, "/"),
		timeout:    timeout,
		retries:    retries,
		logger:     logger,
	}
}

// Check asks the provider for the current seat availability of the segment.
// A 404 from the provider means the segment is simply not bookable and is
// reported as unavailable, not as an error.
func (c *Checker) Check(ctx context.Context, route *entity.MonitoredRoute) (*entity.Availability, error) {
	reqURL := c.requestURL(route)

	var avail *entity.Availability
	backoff := retry.WithMaxRetries(uint64(c.retries), retry.NewExponential(300*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err := c.fetchAvailability(ctx, reqURL, route)
		if err != nil {
			if errors.Is(err, entity.ErrProviderUnavailable) {
				c.logger.Warn("Availability request failed, retrying",
					"providerRouteId", route.ProviderRouteID, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		avail = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return avail, nil
}

func (c *Checker) requestURL(route *entity.MonitoredRoute) string {
	q := url.Values{}
	q.Set("fromStationId", route.FromLocationID)
	q.Set("toStationId", route.ToLocationID)
	tariffs := route.TariffClasses
	if tariffs == "" {
		tariffs = entity.DefaultTariff
	}
	for _, tariff := range strings.Split(tariffs, ",") {
		if tariff = strings.TrimSpace(tariff); tariff != "" {
			q.Add("tariffs", tariff)
		}
	}

	return fmt.Sprintf("%s/routes/%s/simple?%s",
		c.baseURL, url.PathEscape(route.ProviderRouteID), q.Encode())
}

func (c *Checker) fetchAvailability(ctx context.Context, reqURL string, route *entity.MonitoredRoute) (*entity.Availability, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Lang", "cs")
	req.Header.Set("X-Currency", "CZK")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &entity.Availability{Available: false}, nil
	case resp.StatusCode >= http.StatusInternalServerError,
		resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: provider returned status %d", entity.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var body struct {
		FreeSeatsCount int     `json:"freeSeatsCount"`
		PriceFrom      float64 `json:"priceFrom"`
		PriceTo        float64 `json:"priceTo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}

	if body.FreeSeatsCount <= 0 {
		return &entity.Availability{Available: false}, nil
	}

	return &entity.Availability{
		Available:   true,
		FreeSeats:   body.FreeSeatsCount,
		PriceFrom:   body.PriceFrom,
		PriceTo:     body.PriceTo,
		Currency:    "CZK",
		BookingLink: c.BookingLink(route),
	}, nil
}

// BookingLink builds the deep link into the provider's booking flow
func (c *Checker) BookingLink(route *entity.MonitoredRoute) string {
	q := url.Values{}
	q.Set("departureDate", route.DepartureAt.Format("2006-01-02"))
	q.Set("fromLocationId", route.FromLocationID)
	q.Set("fromLocationType", route.FromLocationType)
	q.Set("toLocationId", route.ToLocationID)
	q.Set("toLocationType", route.ToLocationType)
	return c.bookingURL + "?" + q.Encode()
}
