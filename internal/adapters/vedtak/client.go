// Package vedtak reads attested decisions back from the vedtak service.
package vedtak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/DanielPopoola/etterlatte-settlement/internal/config"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
	"github.com/shopspring/decimal"
)

const (
	periodTypePayment     = "UTBETALING"
	periodTypeTermination = "OPPHOER"
)

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.VedtakConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

type periodeDTO struct {
	Fom domain.YearMonth  `json:"fom"`
	Tom *domain.YearMonth `json:"tom"`
}

type utbetalingsperiodeDTO struct {
	Periode periodeDTO          `json:"periode"`
	Beloep  decimal.NullDecimal `json:"beloep"`
	Type    string              `json:"type"`
}

type vedtakDTO struct {
	VedtakID            int64                   `json:"vedtakId"`
	Utbetalingsperioder []utbetalingsperiodeDTO `json:"utbetalingsperioder"`
}

// FetchSchedule returns the decision's utbetalingsperioder as schedule entries.
func (c *HTTPClient) FetchSchedule(ctx context.Context, decisionID int64) ([]domain.ScheduleEntry, error) {
	v, err := getJSON[vedtakDTO](c, ctx, "/api/vedtak/"+strconv.FormatInt(decisionID, 10))
	if err != nil {
		return nil, err
	}

	schedule := make([]domain.ScheduleEntry, 0, len(v.Utbetalingsperioder))
	for _, p := range v.Utbetalingsperioder {
		entry := domain.ScheduleEntry{
			PeriodFrom: p.Periode.Fom,
			PeriodTo:   p.Periode.Tom,
			Amount:     p.Beloep,
		}
		switch p.Type {
		case periodTypePayment:
			entry.Kind = domain.LineKindPayment
		case periodTypeTermination:
			entry.Kind = domain.LineKindTermination
		default:
			return nil, fmt.Errorf("vedtak %d has period of unknown type %q", decisionID, p.Type)
		}
		schedule = append(schedule, entry)
	}
	return schedule, nil
}

// getJSON is a generic helper for GET requests against the vedtak API.
func getJSON[Resp any](c *HTTPClient, ctx context.Context, path string) (*Resp, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &VedtakError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var out Resp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}
	return &out, nil
}

var _ ports.DecisionSource = (*HTTPClient)(nil)
