package pipeline

import (
	"fmt"

	"github.com/wonny/fundarb/internal/enricher"
	"github.com/wonny/fundarb/internal/external/eastmoney"
	"github.com/wonny/fundarb/internal/external/jisilu"
	"github.com/wonny/fundarb/internal/navcache"
	"github.com/wonny/fundarb/internal/opportunity"
	"github.com/wonny/fundarb/pkg/config"
	"github.com/wonny/fundarb/pkg/logger"
)

// Build constructs a Detector and its clients from configuration
func Build(cfg *config.Config, log *logger.Logger) (*Detector, *navcache.Store, error) {
	categories, err := opportunity.LoadCategories(cfg.Filter.CategoriesFile, opportunity.DefaultCategories(opportunity.Thresholds{
		Premium:     cfg.Filter.PremiumThreshold,
		NavPremium:  cfg.Filter.NavPremiumThreshold,
		MinTurnover: cfg.Filter.MinTurnover,
	}))
	if err != nil {
		return nil, nil, fmt.Errorf("load categories: %w", err)
	}

	store := navcache.NewStore(cfg.Cache.Dir, log)
	em := eastmoney.NewClient(cfg.Eastmoney, log)
	enr := enricher.New(em, store, log, enricher.WithWorkers(cfg.Eastmoney.Workers))

	detector := NewDetector(Deps{
		Feed: jisilu.NewClient(cfg.Provider, log),
		Feeds: Feeds{
			LOFURL:  cfg.Provider.LOFURL,
			QDIIURL: cfg.Provider.QDIIURL,
		},
		Spot:        em,
		Store:       store,
		Enricher:    enr,
		Categories:  categories,
		HighPremium: cfg.Filter.HighPremium,
		Location:    cfg.Location(),
	}, log)

	return detector, store, nil
}
