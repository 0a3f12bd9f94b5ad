package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/localbiz-crawler/internal/app"
	"github.com/JakeFAU/localbiz-crawler/internal/units"
)

type crawlFlags struct {
	unitsPath string
	query     string
	state     string
	counties  []string
	output    string
}

// newApp is the service factory; tests replace it to inject fakes.
var newApp = app.New

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every county in a units file",
		Long: `Walks the search results for the query in each county listed in the
units file, fetches every listing's details and saves the records to
output/<name> - <ST>.json after each completed county.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.unitsPath, "units", "units.yaml", "YAML file listing the counties to crawl")
	cmd.Flags().StringVar(&flags.query, "query", "", "search query, overriding the units file")
	cmd.Flags().StringVar(&flags.state, "state", "", "two-letter state code, overriding the units file")
	cmd.Flags().StringSliceVar(&flags.counties, "county", nil, "restrict the crawl to these counties (repeatable)")
	cmd.Flags().StringVar(&flags.output, "output", "", "output file base name (default: the query)")
	return cmd
}

func runCrawl(cmd *cobra.Command, flags *crawlFlags) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}

	file, err := units.Load(flags.unitsPath)
	if err != nil {
		rt.logger.Debug("units file rejected", zap.String("trace", eris.ToString(err, true)))
		return fmt.Errorf("load units: %w", err)
	}
	workUnits, err := file.WorkUnits(units.Selection{
		Query:    flags.query,
		State:    flags.state,
		Counties: flags.counties,
	})
	if err != nil {
		rt.logger.Debug("unit selection rejected", zap.String("trace", eris.ToString(err, true)))
		return fmt.Errorf("select units: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := newApp(ctx, rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize crawl services: %w", err)
	}
	defer services.Close(context.Background())

	rt.logger.Info("crawl starting",
		zap.String("query", workUnits[0].Query),
		zap.String("state", workUnits[0].StateCode),
		zap.Int("units", len(workUnits)),
	)
	res, err := services.Crawl(ctx, workUnits, flags.output)
	switch {
	case errors.Is(err, context.Canceled):
		rt.logger.Warn("crawl interrupted; rerun the same command to resume",
			zap.Int("records", len(res.Records)),
			zap.String("snapshot", res.SnapshotPath),
		)
		return nil
	case err != nil:
		return fmt.Errorf("run crawl: %w", err)
	}
	rt.logger.Info("crawl command finished",
		zap.Int("records", len(res.Records)),
		zap.String("snapshot", res.SnapshotPath),
	)
	return nil
}
