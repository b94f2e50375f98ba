package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/repository"
	"SignalPulse/pkg/config"
	xhttp "SignalPulse/pkg/http"
)

const (
	tdTimeLayout = "2006-01-02 15:04:05"
	tdDateLayout = "2006-01-02"
	tdOutputSize = 5000
)

type tdValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

type tdTimeSeries struct {
	Status  string    `json:"status"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Values  []tdValue `json:"values"`
}

// TwelveData serves NSE equities, forex pairs and index benchmarks.
type TwelveData struct {
	cfg    config.TwelveDataConfig
	client *xhttp.Client
	now    func() time.Time
}

var _ repository.MarketDataProvider = (*TwelveData)(nil)

func NewTwelveData(cfg config.TwelveDataConfig) *TwelveData {
	return &TwelveData{
		cfg:    cfg,
		client: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout), xhttp.WithRetry(3, 250*time.Millisecond)),
		now:    time.Now,
	}
}

func (t *TwelveData) Fetch(ctx context.Context, symbol string, period repository.Period, interval repository.Interval) ([]models.Bar, error) {
	return fetchPeriod(ctx, t, symbol, period, interval, t.now())
}

func (t *TwelveData) FetchRange(ctx context.Context, symbol string, interval repository.Interval, from, to time.Time) ([]models.Bar, error) {
	sym, exchange := t.instrument(symbol)
	q := url.Values{
		"symbol":     {sym},
		"interval":   {tdInterval(interval)},
		"start_date": {from.UTC().Format(tdTimeLayout)},
		"end_date":   {to.UTC().Format(tdTimeLayout)},
		"timezone":   {"UTC"},
		"order":      {"ASC"},
		"outputsize": {strconv.Itoa(tdOutputSize)},
		"apikey":     {t.cfg.APIKey},
	}
	if exchange != "" {
		q.Set("exchange", exchange)
	}

	var body tdTimeSeries
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         strings.TrimRight(t.cfg.BaseURL, "/") + "/time_series",
		QueryParams: q,
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("twelvedata %s: %w", symbol, err)
	}
	if body.Status == "error" {
		// an empty window is reported as a 400 rather than an empty list
		if body.Code == 400 && strings.Contains(strings.ToLower(body.Message), "no data") {
			return []models.Bar{}, nil
		}
		return nil, fmt.Errorf("twelvedata %s: %s", symbol, body.Message)
	}

	bars := make([]models.Bar, 0, len(body.Values))
	for _, v := range body.Values {
		b, err := parseTDValue(v)
		if err != nil {
			return nil, fmt.Errorf("twelvedata %s: %w", symbol, err)
		}
		bars = append(bars, b)
	}
	return clip(bars, from, to), nil
}

// instrument converts a ticker to TwelveData's symbol and optional exchange.
func (t *TwelveData) instrument(symbol string) (string, string) {
	if alias, ok := t.cfg.Aliases[symbol]; ok {
		return alias, ""
	}
	if base, ok := strings.CutSuffix(symbol, ".NS"); ok {
		return base, "NSE"
	}
	if pair, ok := strings.CutSuffix(symbol, "=X"); ok && len(pair) == 6 {
		return pair[:3] + "/" + pair[3:], ""
	}
	return symbol, ""
}

func tdInterval(iv repository.Interval) string {
	switch iv {
	case repository.Interval1m:
		return "1min"
	case repository.Interval15m:
		return "15min"
	case repository.Interval1h:
		return "1h"
	case repository.Interval1d:
		return "1day"
	default:
		return "5min"
	}
}

func parseTDValue(v tdValue) (models.Bar, error) {
	tm, err := time.Parse(tdTimeLayout, v.Datetime)
	if err != nil {
		tm, err = time.Parse(tdDateLayout, v.Datetime)
		if err != nil {
			return models.Bar{}, fmt.Errorf("parse time %q: %w", v.Datetime, err)
		}
	}
	var out [4]float64
	for i, s := range []string{v.Open, v.High, v.Low, v.Close} {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("parse price %q: %w", s, err)
		}
		out[i] = f
	}
	// forex and indices carry no volume
	var vol float64
	if v.Volume != "" {
		if vol, err = strconv.ParseFloat(v.Volume, 64); err != nil {
			return models.Bar{}, fmt.Errorf("parse volume %q: %w", v.Volume, err)
		}
	}
	return models.Bar{Time: tm, Open: out[0], High: out[1], Low: out[2], Close: out[3], Volume: vol}, nil
}
