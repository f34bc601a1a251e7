package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "净值缓存管理",
	Long: `按日缓存的单位净值 (lof_cache/nav_cache_YYYYMMDD.json)。

Example:
  go run ./cmd/fundarb cache list
  go run ./cmd/fundarb cache show --date 2024-01-15
  go run ./cmd/fundarb cache prune --keep 7`,
}

var (
	cacheListCmd = &cobra.Command{
		Use:   "list",
		Short: "已缓存日期",
		RunE:  runCacheList,
	}

	cacheShowCmd = &cobra.Command{
		Use:   "show",
		Short: "显示某日缓存",
		RunE:  runCacheShow,
	}

	cachePruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "删除过期缓存",
		RunE:  runCachePrune,
	}
)

var (
	cacheDate string
	cacheKeep int
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cachePruneCmd)

	cacheShowCmd.Flags().StringVar(&cacheDate, "date", "", "YYYY-MM-DD (default today)")
	cachePruneCmd.Flags().IntVar(&cacheKeep, "keep", -1, "days to keep (default NAV_CACHE_KEEP_DAYS)")
}

func runCacheList(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	dates, err := a.store.Dates(a.cfg.Location())
	if err != nil {
		return err
	}

	if len(dates) == 0 {
		PrintInfo(fmt.Sprintf("No cache files in %s", a.store.Dir()))
		return nil
	}

	for _, d := range dates {
		day, err := a.store.Load(d)
		if err != nil {
			PrintError(fmt.Sprintf("%s: %v", d.Format("2006-01-02"), err))
			continue
		}
		fmt.Printf("  %s  %d entries\n", d.Format("2006-01-02"), day.Len())
	}
	return nil
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	loc := a.cfg.Location()
	date := time.Now().In(loc)
	if cacheDate != "" {
		date, err = time.ParseInLocation("2006-01-02", cacheDate, loc)
		if err != nil {
			return fmt.Errorf("invalid --date (expected YYYY-MM-DD): %w", err)
		}
	}

	day, err := a.store.Load(date)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("NAV cache %s (%d entries)", day.AsOf(), day.Len()))

	codes := day.Codes()
	widths := []int{8, 10, 12}
	PrintTableHeader([]string{"Code", "NAV", "NAV date"}, widths)
	for _, code := range codes {
		e, _ := day.Get(code)
		PrintTableRow([]string{code, fmt.Sprintf("%.4f", e.ReferenceValue), e.NavDate}, widths)
	}
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	keep := a.cfg.Cache.KeepDays
	if cacheKeep >= 0 {
		keep = cacheKeep
	}

	removed, err := a.store.Prune(time.Now().In(a.cfg.Location()), keep)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Removed %d cache files (keep %d days)", removed, keep))
	return nil
}
