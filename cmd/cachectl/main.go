// cachectl is the operator tool for the pipeline cache: inspection, pattern
// invalidation, clearing and age-based maintenance, either one-shot or on a
// cron schedule. It consumes the same library surface as any other client.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/climaterisk-co/risk-cache/config"
	"github.com/climaterisk-co/risk-cache/integrator"
	"github.com/climaterisk-co/risk-cache/logger"
	"github.com/climaterisk-co/risk-cache/types"
)

func main() {
	app := &cli.App{
		Name:  "cachectl",
		Usage: "inspect and maintain the climate-risk pipeline cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yml",
				Usage:   "path to the service YAML config",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "show cache location, size and per-type breakdown",
				Action: runInfo,
			},
			{
				Name:   "stats",
				Usage:  "show hit/miss/invalidation counters",
				Action: runStats,
			},
			{
				Name:  "clear",
				Usage: "remove cached entries",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "storage type (raster_data|calculations|final_results)"},
				},
				Action: runClear,
			},
			{
				Name:      "invalidate",
				Usage:     "remove entries whose key contains the given pattern",
				ArgsUsage: "<pattern>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "restrict to one storage type"},
				},
				Action: runInvalidate,
			},
			{
				Name:  "cleanup",
				Usage: "remove entries older than --max-age",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "max-age", Value: 30 * 24 * time.Hour},
				},
				Action: runCleanup,
			},
			{
				Name:  "watch",
				Usage: "run age-based cleanup on a cron schedule until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "schedule", Value: "0 3 * * *", Usage: "cron expression"},
					&cli.DurationFlag{Name: "max-age", Value: 30 * 24 * time.Hour},
				},
				Action: runWatch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load(c *cli.Context) (*integrator.Integrator, types.Logger, error) {
	cfg, err := config.NewLoader().LoadFromFile(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.NewDefaultLogger(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}

	integ, err := integrator.New(cfg.Cache, log)
	if err != nil {
		return nil, nil, err
	}

	return integ, log, nil
}

func storageType(c *cli.Context) (types.StorageType, error) {
	raw := c.String("type")
	if raw == "" {
		return "", nil
	}

	st := types.StorageType(raw)
	if !st.Valid() {
		return "", types.Errorf(types.ErrStorageTypeUnknown, "%s", raw)
	}
	return st, nil
}

func runInfo(c *cli.Context) error {
	integ, _, err := load(c)
	if err != nil {
		return err
	}

	info, err := integ.Info()
	if err != nil {
		return err
	}

	fmt.Printf("enabled:  %v\n", info.Enabled)
	fmt.Printf("root:     %s\n", info.RootDir)
	fmt.Printf("size:     %s\n", humanize.IBytes(info.TotalSizeBytes))
	for _, st := range types.StorageTypes() {
		typeInfo := info.PerType[st]
		fmt.Printf("  %-14s %5d entries  %s\n", st, typeInfo.Entries, humanize.IBytes(typeInfo.SizeBytes))
	}

	if info.MaxCacheSizeGB > 0 {
		limit := uint64(info.MaxCacheSizeGB * humanize.GiByte)
		fmt.Printf("limit:    %s (advisory)\n", humanize.IBytes(limit))
		if info.TotalSizeBytes > limit {
			fmt.Println("warning: cache exceeds its advisory size limit, consider cleanup")
		}
	}

	return nil
}

func runStats(c *cli.Context) error {
	integ, _, err := load(c)
	if err != nil {
		return err
	}

	integ.PrintStatistics()
	return nil
}

func runClear(c *cli.Context) error {
	integ, _, err := load(c)
	if err != nil {
		return err
	}

	st, err := storageType(c)
	if err != nil {
		return err
	}

	fmt.Printf("removed %d entries\n", integ.Clear(st))
	return nil
}

func runInvalidate(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("invalidate requires exactly one pattern argument")
	}

	integ, _, err := load(c)
	if err != nil {
		return err
	}

	st, err := storageType(c)
	if err != nil {
		return err
	}

	fmt.Printf("removed %d entries\n", integ.Invalidate(c.Args().First(), st))
	return nil
}

func runCleanup(c *cli.Context) error {
	integ, _, err := load(c)
	if err != nil {
		return err
	}

	fmt.Printf("removed %d entries\n", integ.Cleanup(c.Duration("max-age")))
	return nil
}

func runWatch(c *cli.Context) error {
	integ, log, err := load(c)
	if err != nil {
		return err
	}

	maxAge := c.Duration("max-age")
	cronL := cronLogger{logger: log}

	scheduler := cron.New(cron.WithChain(cron.Recover(cronL)))
	_, err = scheduler.AddFunc(c.String("schedule"), func() {
		removed := integ.Cleanup(maxAge)
		log.Info("Scheduled cache cleanup completed",
			zap.Duration("max_age", maxAge),
			zap.Int("removed", removed))
	})
	if err != nil {
		return types.WrapError(err, "invalid cron schedule")
	}

	scheduler.Start()
	defer scheduler.Stop()

	log.Info("Cache maintenance scheduler started",
		zap.String("schedule", c.String("schedule")))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	return nil
}

type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
