package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fundarb/pkg/database"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "定时任务管理",
	Long: `每日定时扫描并推送。

Subcommands:
  start   - 启动调度循环
  list    - 已注册任务
  run     - 立即执行某个任务 (不影响当日定时执行)
  status  - 任务执行统计

Example:
  go run ./cmd/fundarb scheduler start
  go run ./cmd/fundarb scheduler run opportunity_scan`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "启动调度循环",
		Long: `启动调度循环并注册任务:

- opportunity_scan: 每日 SCHEDULE_TRIGGER_TIME (默认 14:00) 扫描并推送
- nav_cache_cleanup: 每日 00:30 清理过期净值缓存

同一天内每个任务最多执行一次。进程在触发时间之后重启时，
若当天尚未执行则补跑一次。Ctrl+C 退出。`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "已注册任务",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "立即执行某个任务",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "任务执行统计",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	PrintHeader("fundarb scheduler")

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := a.initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		next, _ := sched.NextRun(jobName)
		fmt.Printf("  - %s (next: %s)\n", jobName, next.Format("2006-01-02 15:04:05"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := sched.Start(ctx); err != nil {
		return err
	}

	fmt.Println("Scheduler stopped")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.initScheduler(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := a.initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	if err := sched.RunJob(ctx, jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	PrintSuccess("Job completed")
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	sched, err := a.initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	if a.db != nil {
		fmt.Println(ledgerHealthLine(a.db.HealthCheck(ctx)))
		fmt.Println()
	}

	stats := sched.GetJobStats(ctx)

	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, jobName := range sched.GetAllJobs() {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Next Run: %s\n", stat.NextRun.Format("2006-01-02 15:04:05"))

		if stat.LastFired != "" {
			fmt.Printf("   Last Fired: %s\n", stat.LastFired)
		} else {
			fmt.Println("   Last Fired: never")
		}

		fmt.Println()
	}

	return nil
}

// ledgerHealthLine renders the PostgreSQL ledger's health
func ledgerHealthLine(h database.HealthStatus) string {
	if !h.Healthy {
		return fmt.Sprintf("❌ Ledger DB: unhealthy (%s)", h.Error)
	}
	return fmt.Sprintf("✅ Ledger DB: healthy (%s, %d/%d idle conns)",
		h.ResponseTime.Round(time.Millisecond), h.IdleConns, h.TotalConns)
}
