// Package paginate assembles complete multi-page Data Bridges results using
// a bounded worker pool.
package paginate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/WFP-VAM/google-data-bridges/pkg/endpoint"
	"github.com/WFP-VAM/google-data-bridges/pkg/fetcher"
	"github.com/WFP-VAM/google-data-bridges/pkg/rowset"
)

// Prometheus metrics for aggregated fetches.
var (
	aggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "databridges_aggregations_total",
		Help: "Total multi-page aggregations by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "databridges_aggregation_duration_seconds",
		Help:    "Duration of complete multi-page aggregations by endpoint",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"endpoint"})
)

// DefaultPageSize is the maximum page size the Data Bridges API serves.
const DefaultPageSize = 1000

// DefaultWorkers is the number of concurrent page fetches.
const DefaultWorkers = 5

// Config holds orchestrator settings.
type Config struct {
	// PageSize is the page size used for page-count math unless the request
	// overrides it with a page_size parameter.
	PageSize int

	// Workers is the size of the page-fetch worker pool.
	Workers int
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		PageSize: DefaultPageSize,
		Workers:  DefaultWorkers,
	}
}

// PageFetcher is the single-page collaborator the orchestrator fans out
// over. *fetcher.Fetcher implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, e endpoint.Endpoint, params map[string]string) (*fetcher.Page, error)
}

// Orchestrator fans out concurrent page fetches and merges the pages into a
// single RowSet in ascending page order.
type Orchestrator struct {
	fetcher PageFetcher
	cfg     Config
	logger  zerolog.Logger
}

// New creates an orchestrator on top of the given single-page fetcher.
func New(f PageFetcher, cfg Config, logger zerolog.Logger) *Orchestrator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Orchestrator{
		fetcher: f,
		cfg:     cfg,
		logger:  logger.With().Str("component", "paginator").Logger(),
	}
}

type pageResult struct {
	page int
	rows *rowset.RowSet
	err  error
}

// FetchAll fetches every page of the endpoint starting at the page named in
// params (default 1) and concatenates the pages in ascending page order. Any
// page failure cancels the outstanding fetches and fails the aggregation;
// there is no partial-result mode.
func (o *Orchestrator) FetchAll(ctx context.Context, e endpoint.Endpoint, params map[string]string) (*rowset.RowSet, error) {
	start := time.Now()
	defer func() {
		aggregationDuration.WithLabelValues(string(e)).Observe(time.Since(start).Seconds())
	}()

	startPage, pageSize, err := pageBounds(params, o.cfg.PageSize)
	if err != nil {
		return nil, err
	}

	// Probe the starting page for the total item count.
	firstParams := withPage(params, startPage)
	first, err := o.fetcher.FetchPage(ctx, e, firstParams)
	if err != nil {
		aggregationsTotal.WithLabelValues(string(e), "error").Inc()
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	lastPage := startPage
	if first.TotalItems != nil {
		lastPage = totalPages(*first.TotalItems, pageSize)
		if lastPage < startPage {
			lastPage = startPage
		}
	}

	o.logger.Info().
		Str("endpoint", string(e)).
		Int("start_page", startPage).
		Int("last_page", lastPage).
		Msg("Starting paginated fetch")

	if lastPage == startPage {
		aggregationsTotal.WithLabelValues(string(e), "success").Inc()
		o.logger.Info().
			Str("endpoint", string(e)).
			Int("pages", 1).
			Int("rows", first.Rows.Len()).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first.Rows, nil
	}

	pages, err := o.fetchRemaining(ctx, e, params, startPage+1, lastPage)
	if err != nil {
		aggregationsTotal.WithLabelValues(string(e), "error").Inc()
		return nil, err
	}
	pages[startPage] = first.Rows

	// Concatenate strictly by ascending page number, independent of
	// completion order.
	numbers := make([]int, 0, len(pages))
	for page := range pages {
		numbers = append(numbers, page)
	}
	sort.Ints(numbers)

	sets := make([]*rowset.RowSet, 0, len(numbers))
	for _, page := range numbers {
		sets = append(sets, pages[page])
	}
	merged := rowset.Concat(sets...)

	aggregationsTotal.WithLabelValues(string(e), "success").Inc()
	o.logger.Info().
		Str("endpoint", string(e)).
		Int("pages", len(numbers)).
		Int("rows", merged.Len()).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return merged, nil
}

// fetchRemaining runs the worker pool over pages [from, to]. The first
// failure cancels the pool and is returned after all workers stop.
func (o *Orchestrator) fetchRemaining(ctx context.Context, e endpoint.Endpoint, params map[string]string, from, to int) (map[int]*rowset.RowSet, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pageQueue := make(chan int, to-from+1)
	results := make(chan pageResult, to-from+1)

	for page := from; page <= to; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			o.worker(ctx, e, params, pageQueue, results, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	pages := make(map[int]*rowset.RowSet)
	var firstErr error
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch page %d: %w", result.page, result.err)
				cancel()
			}
			continue
		}
		pages[result.page] = result.rows
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return pages, nil
}

// worker drains the page queue until it is empty or the context is
// cancelled.
func (o *Orchestrator) worker(ctx context.Context, e endpoint.Endpoint, params map[string]string, pageQueue <-chan int, results chan<- pageResult, workerID int) {
	for page := range pageQueue {
		select {
		case <-ctx.Done():
			o.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		fetched, err := o.fetcher.FetchPage(ctx, e, withPage(params, page))
		if err != nil {
			o.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", page).
				Msg("Page fetch failed")
			results <- pageResult{page: page, err: err}
			continue
		}
		results <- pageResult{page: page, rows: fetched.Rows}
	}
}

// totalPages computes ceil(totalItems / pageSize), with a floor of one page.
func totalPages(totalItems int64, pageSize int) int {
	if totalItems <= 0 {
		return 1
	}
	return int((totalItems + int64(pageSize) - 1) / int64(pageSize))
}

// pageBounds extracts the starting page and page size from the request
// parameters.
func pageBounds(params map[string]string, defaultPageSize int) (startPage, pageSize int, err error) {
	startPage = 1
	pageSize = defaultPageSize

	if raw, ok := params["page"]; ok {
		startPage, err = strconv.Atoi(raw)
		if err != nil || startPage < 1 {
			return 0, 0, fmt.Errorf("invalid page parameter %q", raw)
		}
	}
	if raw, ok := params["page_size"]; ok {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize < 1 {
			return 0, 0, fmt.Errorf("invalid page_size parameter %q", raw)
		}
	}
	return startPage, pageSize, nil
}

// withPage copies params with the page parameter set.
func withPage(params map[string]string, page int) map[string]string {
	copied := make(map[string]string, len(params)+1)
	for k, v := range params {
		copied[k] = v
	}
	copied["page"] = strconv.Itoa(page)
	return copied
}
