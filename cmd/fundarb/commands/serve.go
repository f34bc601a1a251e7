package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/fundarb/internal/api"
	"github.com/wonny/fundarb/internal/api/handlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 服务 + 调度循环",
	Long: `启动 HTTP API，并在同一进程中运行调度循环。

Endpoints:
  GET  /health                  - Health check
  GET  /api/opportunities       - 最近一次扫描结果
  GET  /api/categories          - 类别配置
  GET  /api/progress            - 当前扫描进度
  GET  /ws/progress             - 扫描进度推送 (WebSocket)
  POST /api/scan                - 立即扫描 {"mode":"nav","notify":true}
  GET  /api/jobs                - 任务统计
  GET  /api/jobs/{name}/history - 任务执行历史
  POST /api/jobs/{name}/run     - 立即执行任务
  GET  /api/cache               - 已缓存日期
  GET  /api/cache/day?date=     - 某日净值缓存

Example:
  go run ./cmd/fundarb serve
  go run ./cmd/fundarb serve --port 8090 --no-scheduler`,
	RunE: runServe,
}

var (
	servePort        string
	serveNoScheduler bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API port (default PORT)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "serve the API only")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := api.Handlers{
		Opportunity: handlers.NewOpportunityHandler(a.detector, a.notifier, a.log),
		Stream:      handlers.NewStreamHandler(a.detector, handlers.DefaultStreamInterval, a.log),
		Cache:       handlers.NewCacheHandler(a.store, a.cfg.Location(), a.log),
	}

	g, gctx := errgroup.WithContext(ctx)

	if !serveNoScheduler {
		sched, err := a.initScheduler(ctx)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		h.Scheduler = handlers.NewSchedulerHandler(sched, a.log)

		g.Go(func() error {
			return sched.Start(gctx)
		})
	}

	server := api.New(a.cfg, a.log, api.NewRouter(h, a.log))

	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		return err
	}

	a.log.Info("Server stopped")
	return nil
}
