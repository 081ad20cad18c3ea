package testhistory

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/okian/bookrec/pkg/logger"
	"github.com/spf13/cobra"
)

// Default configuration constants.
const (
	defaultUsers       = 50
	defaultWorkersMul  = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

// NewCommand returns the test-history root command.
func NewCommand() *cobra.Command {
	cfg := &Config{}
	var logFormat string

	cmd := &cobra.Command{
		Use:   "test-history",
		Short: "Seed reading history and verify /recommend against a running bookrec",
		Long: `test-history creates synthetic readers, posts their reading history with
bearer tokens minted from the shared secret, then requests recommendations
for each reader and checks that every list is sorted by descending score,
has unique titles and respects the size limit.`,
		Example: `  test-history --secret "$BOOKREC_JWT_SECRET"
  test-history --url http://localhost:8080 --users 200 --workers 16 --secret s3cret
  test-history --secret s3cret --verbose --log-format json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat), logger.WithOutput(cmd.OutOrStdout())); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTestTimeout)
			defer cancel()
			return Run(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.StringVar(&cfg.JWTSecret, "secret", os.Getenv("BOOKREC_JWT_SECRET"), "HS256 secret used to mint tokens")
	f.IntVar(&cfg.Users, "users", defaultUsers, "Number of synthetic readers")
	f.IntVar(&cfg.BooksPerUser, "books", DefaultBooksPerUser, "History events per reader")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkersMul, "Number of concurrent workers")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.IntVar(&cfg.MaxResults, "max-results", DefaultMaxResults, "Largest list /recommend may return")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log every recommendation list")
	f.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	return cmd
}
