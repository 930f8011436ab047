package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"athena/libs/resilience"
	"athena/libs/store"
	"athena/libs/ticker"
)

// analyticsPublicationLag is how recently the open-interest feed can be
// queried before its numbers are not yet published. Windows ending more
// recently than this are rejected rather than silently truncated.
const analyticsPublicationLag = 5 * time.Minute

// analyticsPageWidth bounds each upstream request to a short window;
// wider windows are split into sequential page requests.
const analyticsPageWidth = 48 * time.Hour

// analyticsClientGroup is the only clgroup value this adapter reports:
// the legal-entity (юридические лица) aggregate row.
const analyticsClientGroup = "YUR"

// issAnalyticsResponse mirrors the MOEX-analytic futures open-interest
// payload: a column-store "futoi" block keyed the same way as the
// candles feed.
type issAnalyticsResponse struct {
	Futoi struct {
		Columns []string        `json:"columns"`
		Data    [][]interface{} `json:"data"`
	} `json:"futoi"`
}

// Credentials holds the session login pair read from res/moex.key.
type Credentials struct {
	Login    string
	Password string
}

// MOEXAnalyticAdapter fetches open-interest analytics via session-cookie
// authentication against the MOEX-analytic HTTP API.
type MOEXAnalyticAdapter struct {
	client      *resty.Client
	breaker     *resilience.CircuitBreaker
	baseURL     string
	creds       Credentials
	clockNow    func() time.Time
	sessionOnce bool
}

// NewMOEXAnalyticAdapter builds an adapter authenticating with creds
// against baseURL (pass "" for the public endpoint).
func NewMOEXAnalyticAdapter(baseURL string, creds Credentials) *MOEXAnalyticAdapter {
	if baseURL == "" {
		baseURL = "https://iss.moex.com"
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	return &MOEXAnalyticAdapter{
		client:   client,
		breaker:  resilience.NewCircuitBreaker(resilience.DefaultConfig("moex_analytic")),
		baseURL:  baseURL,
		creds:    creds,
		clockNow: time.Now,
	}
}

// Download implements Adapter. It refuses windows ending inside the
// publication lag, authenticates once per process (re-acquiring the
// session on a 401), paginates the window in analyticsPageWidth
// chunks, keeps only the legal-entity aggregate row, negates short per
// the storage sign convention, and resamples the paginated raw rows to
// the requested bar width by averaging.
func (a *MOEXAnalyticAdapter) Download(ctx context.Context, symbol string, start, end time.Time, span ticker.TimeSpan, hints Hints) (store.Table, error) {
	if a.clockNow().Sub(end) < analyticsPublicationLag {
		return nil, fmt.Errorf("%w: %w", ticker.ErrFetchFailed, ErrAnalyticsWindowTooRecent)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := a.breaker.ExecuteWithContext(ctx, func() (any, error) {
		return a.download(ctx, symbol, start, end, span)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ticker.ErrFetchFailed, err)
	}
	return result.(store.Table), nil
}

func (a *MOEXAnalyticAdapter) download(ctx context.Context, symbol string, start, end time.Time, span ticker.TimeSpan) (store.Table, error) {
	if err := a.ensureSession(ctx); err != nil {
		return nil, err
	}

	var raw []store.Row
	for pageStart := start; pageStart.Before(end); pageStart = pageStart.Add(analyticsPageWidth) {
		pageEnd := pageStart.Add(analyticsPageWidth)
		if pageEnd.After(end) {
			pageEnd = end
		}
		page, err := a.fetchPage(ctx, symbol, pageStart, pageEnd)
		if err != nil {
			return nil, err
		}
		raw = append(raw, page...)
	}

	store.SortByDatetime(raw)
	return store.Table(resample(raw, span)), nil
}

// ensureSession authenticates if no session has been established yet.
// It does not re-check an existing session's validity; fetchPage
// forces re-authentication itself when a request comes back 401.
func (a *MOEXAnalyticAdapter) ensureSession(ctx context.Context) error {
	if a.sessionOnce {
		return nil
	}
	return a.authenticate(ctx)
}

func (a *MOEXAnalyticAdapter) authenticate(ctx context.Context) error {
	if a.creds.Login == "" || a.creds.Password == "" {
		return ErrMissingCredentials
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetBasicAuth(a.creds.Login, a.creds.Password).
		Get("/iss/index.json")
	if err != nil {
		return fmt.Errorf("establish analytics session: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("establish analytics session: status %d", resp.StatusCode())
	}
	a.sessionOnce = true
	return nil
}

func (a *MOEXAnalyticAdapter) fetchPage(ctx context.Context, symbol string, start, end time.Time) ([]store.Row, error) {
	path := fmt.Sprintf("/iss/analyticalproducts/futoi/securities/%s.json", symbol)
	params := map[string]string{
		"from": start.UTC().Format("2006-01-02"),
		"till": end.UTC().Format("2006-01-02"),
	}

	var payload issAnalyticsResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&payload).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("request analytics for %s: %w", symbol, err)
	}
	if resp.StatusCode() == 401 {
		a.sessionOnce = false
		if err := a.authenticate(ctx); err != nil {
			return nil, fmt.Errorf("re-authenticate after 401: %w", err)
		}
		resp, err = a.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(&payload).
			Get(path)
		if err != nil {
			return nil, fmt.Errorf("request analytics for %s: %w", symbol, err)
		}
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analytics request for %s returned status %d", symbol, resp.StatusCode())
	}

	index := columnIndex(payload.Futoi.Columns)
	dateIdx, hasDate := index["tradedate"]
	timeIdx, hasTime := index["tradetime"]
	groupIdx, hasGroup := index["clgroup"]
	longIdx, hasLong := index["pos_long"]
	shortIdx, hasShort := index["pos_short"]
	longNumbIdx, hasLongNumb := index["pos_long_num"]
	shortNumbIdx, hasShortNumb := index["pos_short_num"]
	if !hasDate || !hasTime || !hasGroup || !hasLong || !hasShort {
		return nil, fmt.Errorf("%w: analytics response missing required columns", ErrDecodeFailed)
	}

	var rows []store.Row
	for _, record := range payload.Futoi.Data {
		group, _ := record[groupIdx].(string)
		if group != analyticsClientGroup {
			continue
		}

		ts, err := parseAnalyticsTimestamp(record[dateIdx], record[timeIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
		longVal, err := toFloat(record[longIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: pos_long: %w", ErrDecodeFailed, err)
		}
		shortVal, err := toFloat(record[shortIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: pos_short: %w", ErrDecodeFailed, err)
		}

		values := map[ticker.Column]float64{
			ticker.Long:  longVal,
			ticker.Short: -shortVal,
		}
		if hasLongNumb {
			if v, err := toFloat(record[longNumbIdx]); err == nil {
				values[ticker.LongNumb] = v
			}
		}
		if hasShortNumb {
			if v, err := toFloat(record[shortNumbIdx]); err == nil {
				values[ticker.ShortNumb] = v
			}
		}

		rows = append(rows, store.Row{Datetime: ts, Values: values})
	}
	return rows, nil
}

func parseAnalyticsTimestamp(date, clock interface{}) (int64, error) {
	dateStr, ok := date.(string)
	if !ok {
		return 0, fmt.Errorf("tradedate field is not a string")
	}
	clockStr, _ := clock.(string)
	if clockStr == "" {
		clockStr = "00:00:00"
	}
	t, err := time.Parse("2006-01-02 15:04:05", dateStr+" "+clockStr)
	if err != nil {
		return 0, fmt.Errorf("parse analytics timestamp %q %q: %w", dateStr, clockStr, err)
	}
	return t.Unix(), nil
}

// resample buckets raw rows (published at their native cadence) into
// span-wide buckets and averages each field within a bucket, so the
// returned series matches the bar width the caller asked for.
func resample(raw []store.Row, span ticker.TimeSpan) []store.Row {
	if len(raw) == 0 {
		return nil
	}
	width := int64(span.Width().Seconds())
	if width <= 0 {
		width = 1
	}

	buckets := make(map[int64][]store.Row)
	var keys []int64
	for _, row := range raw {
		bucket := (row.Datetime / width) * width
		if _, ok := buckets[bucket]; !ok {
			keys = append(keys, bucket)
		}
		buckets[bucket] = append(buckets[bucket], row)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]store.Row, 0, len(keys))
	for _, bucket := range keys {
		group := buckets[bucket]
		sums := make(map[ticker.Column]float64)
		counts := make(map[ticker.Column]int)
		for _, row := range group {
			for col, v := range row.Values {
				sums[col] += v
				counts[col]++
			}
		}
		values := make(map[ticker.Column]float64, len(sums))
		for col, sum := range sums {
			values[col] = sum / float64(counts[col])
		}
		out = append(out, store.Row{Datetime: bucket, Values: values})
	}
	return out
}
