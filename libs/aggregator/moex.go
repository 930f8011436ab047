package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"athena/libs/resilience"
	"athena/libs/store"
	"athena/libs/ticker"
)

// issCandlesResponse mirrors the subset of the MOEX ISS candles.json
// payload this adapter needs: a "candles" block holding parallel
// "columns"/"data" arrays, column-store style.
type issCandlesResponse struct {
	Candles struct {
		Columns []string        `json:"columns"`
		Data    [][]interface{} `json:"data"`
	} `json:"candles"`
}

// MOEXAdapter fetches OHLCV candles from the MOEX ISS HTTP API.
type MOEXAdapter struct {
	client  *resty.Client
	breaker *resilience.CircuitBreaker
	baseURL string
}

// NewMOEXAdapter builds an adapter against the given ISS base URL (pass
// "" to use the public endpoint).
func NewMOEXAdapter(baseURL string) *MOEXAdapter {
	if baseURL == "" {
		baseURL = "https://iss.moex.com"
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	return &MOEXAdapter{
		client:  client,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultConfig("moex_candles")),
		baseURL: baseURL,
	}
}

// Download implements Adapter by calling the ISS candles endpoint for
// one security and converting the response into store.Table rows, with
// mean computed as (open+close)/2 per §4.3.
func (a *MOEXAdapter) Download(ctx context.Context, symbol string, start, end time.Time, span ticker.TimeSpan, hints Hints) (store.Table, error) {
	hints = hintsWithDefaults(hints)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := a.breaker.ExecuteWithContext(ctx, func() (any, error) {
		return a.download(ctx, symbol, start, end, span, hints)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ticker.ErrFetchFailed, err)
	}
	return result.(store.Table), nil
}

func (a *MOEXAdapter) download(ctx context.Context, symbol string, start, end time.Time, span ticker.TimeSpan, hints Hints) (store.Table, error) {
	path := fmt.Sprintf("/iss/engines/%s/markets/%s/securities/%s/candles.json", hints.Engine, hints.Market, symbol)

	var payload issCandlesResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"from":     start.UTC().Format("2006-01-02"),
			"till":     end.UTC().Format("2006-01-02"),
			"interval": fmt.Sprintf("%d", issInterval(span)),
		}).
		SetResult(&payload).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("request candles for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("candles request for %s returned status %d", symbol, resp.StatusCode())
	}

	index := columnIndex(payload.Candles.Columns)
	open, hasOpen := index["open"]
	closeIdx, hasClose := index["close"]
	high, hasHigh := index["high"]
	low, hasLow := index["low"]
	volume, hasVolume := index["volume"]
	begin, hasBegin := index["begin"]
	if !hasOpen || !hasClose || !hasBegin {
		return nil, fmt.Errorf("%w: candles response missing required columns", ErrDecodeFailed)
	}

	rows := make([]store.Row, 0, len(payload.Candles.Data))
	for _, record := range payload.Candles.Data {
		ts, err := parseISSTimestamp(record[begin])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
		openVal, err := toFloat(record[open])
		if err != nil {
			return nil, fmt.Errorf("%w: open: %w", ErrDecodeFailed, err)
		}
		closeVal, err := toFloat(record[closeIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: close: %w", ErrDecodeFailed, err)
		}

		values := map[ticker.Column]float64{
			ticker.Mean: (openVal + closeVal) / 2,
		}
		if hasHigh {
			if v, err := toFloat(record[high]); err == nil {
				values[ticker.High] = v
			}
		}
		if hasLow {
			if v, err := toFloat(record[low]); err == nil {
				values[ticker.Low] = v
			}
		}
		if hasVolume {
			if v, err := toFloat(record[volume]); err == nil {
				values[ticker.Vol] = v
			}
		}

		rows = append(rows, store.Row{Datetime: ts, Values: values})
	}

	store.SortByDatetime(rows)
	return store.Table(rows), nil
}

func hintsWithDefaults(h Hints) Hints {
	if h.Market == "" {
		h.Market = ticker.DefaultMarket
	}
	if h.Engine == "" {
		h.Engine = ticker.DefaultEngine
	}
	return h
}

// issInterval maps a TimeSpan to the ISS candles "interval" query
// parameter. ISS only defines intervals up to 1 month; quarters are
// requested as monthly data, and those monthly rows are stored as
// returned: nothing resamples them to quarter width.
func issInterval(span ticker.TimeSpan) int {
	switch span {
	case ticker.Minute:
		return 1
	case ticker.Hour:
		return 60
	case ticker.Day:
		return 24
	case ticker.Week:
		return 7
	case ticker.Month, ticker.Quarter:
		return 31
	default:
		return 1
	}
}

func columnIndex(columns []string) map[string]int {
	out := make(map[string]int, len(columns))
	for i, c := range columns {
		out[c] = i
	}
	return out
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case nil:
		return 0, fmt.Errorf("value is null")
	default:
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
}

func parseISSTimestamp(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("timestamp field is not a string")
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.Unix(), nil
}
