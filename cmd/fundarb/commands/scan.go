package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/fundarb/internal/notify"
	"github.com/wonny/fundarb/internal/pipeline"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "溢价机会扫描 (单次)",
	Long: `拉取行情，计算溢价，按类别输出套利机会。

Modes:
  premium-feed - 集思录 LOF指数 + QDII 列表 (溢价率由集思录提供)
  nav          - 东方财富场内行情 + 单位净值 (并发查询，按日缓存)
  all          - 两者都跑

Example:
  go run ./cmd/fundarb scan
  go run ./cmd/fundarb scan --mode nav
  go run ./cmd/fundarb scan --mode all --notify`,
	RunE: runScan,
}

var (
	scanMode    string
	scanNotify  bool
	scanMessage bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanMode, "mode", "premium-feed", "premium-feed | nav | all")
	scanCmd.Flags().BoolVar(&scanNotify, "notify", false, "send the digest to the webhook")
	scanCmd.Flags().BoolVar(&scanMessage, "message", false, "print the digest text")
}

func runScan(cmd *cobra.Command, args []string) error {
	mode, err := pipeline.ParseMode(scanMode)
	if err != nil {
		return err
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	PrintHeader(fmt.Sprintf("Opportunity scan (%s)", mode))

	result, err := a.detector.Run(ctx, mode)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	printResult(result)

	if scanMessage {
		fmt.Println()
		fmt.Println(notify.Format(result.Set, result.Set.GeneratedAt, a.cfg.Notify.MaxItems))
	}

	if scanNotify {
		sent, err := a.notifier.Notify(ctx, result.Set)
		if err != nil {
			PrintError(fmt.Sprintf("Notification failed: %v", err))
			return err
		}
		if sent {
			PrintSuccess("Notification sent")
		} else {
			PrintInfo("Nothing sent")
		}
	}

	return nil
}

func printResult(result pipeline.Result) {
	widths := []int{8, 16, 10, 10, 10}
	for _, c := range result.Set.Categories {
		fmt.Println()
		fmt.Printf("%s  (%d)\n", c.Title, len(c.Quotes))
		if len(c.Quotes) == 0 {
			continue
		}
		PrintTableHeader([]string{"Code", "Name", "Price", "Ref", "Premium"}, widths)
		for _, q := range c.Quotes {
			ref := "-"
			if q.ReferenceValue > 0 {
				ref = fmt.Sprintf("%.4f", q.ReferenceValue)
			}
			PrintTableRow([]string{
				q.Code,
				q.Name,
				fmt.Sprintf("%.3f", q.ExchangePrice),
				ref,
				fmt.Sprintf("%.2f%%", q.PremiumRate),
			}, widths)
		}
	}

	fmt.Println()
	PrintDoubleSeparator()
	PrintKeyValue("Run", result.Set.RunID, 14)
	PrintKeyValue("Opportunities", fmt.Sprintf("%d", result.Set.Total()), 14)
	PrintKeyValue("Duration", result.Duration.String(), 14)
}
