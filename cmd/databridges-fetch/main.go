// Command databridges-fetch retrieves a complete paginated result from one
// Data Bridges endpoint and writes the rows to stdout as JSON lines.
//
// Credentials and defaults come from the environment (DATABRIDGES_* variables,
// optionally via a .env file); the endpoint and its query parameters come
// from flags:
//
//	databridges-fetch -endpoint economic_data_values \
//	    -param indicator_name=CPI -param iso3=ETH
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/WFP-VAM/google-data-bridges/internal/config"
	"github.com/WFP-VAM/google-data-bridges/pkg/endpoint"
	"github.com/WFP-VAM/google-data-bridges/pkg/logging"
	"github.com/WFP-VAM/google-data-bridges/pkg/repository"
)

// paramFlags collects repeated -param key=value flags.
type paramFlags map[string]string

func (p paramFlags) String() string {
	pairs := make([]string, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (p paramFlags) Set(raw string) error {
	key, value, found := strings.Cut(raw, "=")
	if !found || key == "" {
		return fmt.Errorf("expected key=value, got %q", raw)
	}
	p[key] = value
	return nil
}

func main() {
	endpointName := flag.String("endpoint", "", "endpoint identifier (currency_usd_quote, economic_data_list, economic_data_values)")
	params := paramFlags{}
	flag.Var(params, "param", "query parameter as key=value (repeatable)")
	flag.Parse()

	if *endpointName == "" {
		fmt.Fprintln(os.Stderr, "missing -endpoint")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	repoCfg := repository.DefaultConfig(cfg.APIKey, cfg.APISecret, cfg.Scopes)
	repoCfg.Host = cfg.Host
	repoCfg.TokenURL = cfg.TokenURL
	repoCfg.PageSize = cfg.PageSize
	repoCfg.Workers = cfg.Workers
	repoCfg.Logger = logger

	ctx := context.Background()
	repo, err := repository.New(ctx, repoCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create repository")
	}

	rows, err := repo.FetchAll(ctx, endpoint.Endpoint(*endpointName), params)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("endpoint", *endpointName).
			Msg("Fetch failed")
	}

	encoder := json.NewEncoder(os.Stdout)
	for _, row := range rows.Rows {
		if err := encoder.Encode(row); err != nil {
			logger.Fatal().Err(err).Msg("Failed to encode row")
		}
	}

	logger.Info().
		Str("endpoint", *endpointName).
		Int("rows", rows.Len()).
		Strs("columns", rows.Columns()).
		Msg("Done")
}
