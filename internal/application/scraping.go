package application

import (
	"slices"

	"github.com/ahrav/go-desirability/internal/domain"
)

// ScrapingPlan tells miners which labels to scrape and how often. Its JSON
// form is the scraping configuration file consumed by the scrapers.
type ScrapingPlan struct {
	ScraperConfigs []ScraperConfig `json:"scraper_configs"`
}

// ScraperConfig configures a single scraper.
type ScraperConfig struct {
	ScraperID      string                `json:"scraper_id"`
	CadenceSeconds int                   `json:"cadence_seconds"`
	LabelsToScrape []LabelScrapingConfig `json:"labels_to_scrape"`
}

// LabelScrapingConfig lists the labels a scraper picks from on each run.
type LabelScrapingConfig struct {
	LabelChoices    []string `json:"label_choices"`
	MaxDataEntities int      `json:"max_data_entities"`
}

type scraperTemplate struct {
	source          domain.Source
	id              string
	cadenceSeconds  int
	maxDataEntities int
}

// scrapers is the fixed scraper assignment, in output order.
var scrapers = [...]scraperTemplate{
	{source: domain.SourceX, id: "X.apidojo", cadenceSeconds: 300, maxDataEntities: 75},
	{source: domain.SourceReddit, id: "Reddit.custom", cadenceSeconds: 60, maxDataEntities: 100},
}

// BuildScrapingPlan selects, per source, the labels whose scale factor in
// lookup is at least cfg.LabelThreshold and assigns them to that source's
// scraper. Labels are sorted so equal lookups give equal plans.
func BuildScrapingPlan(lookup *domain.DesirabilityLookup, cfg ScrapingConfig) ScrapingPlan {
	plan := ScrapingPlan{ScraperConfigs: make([]ScraperConfig, 0, len(scrapers))}
	for _, s := range scrapers {
		plan.ScraperConfigs = append(plan.ScraperConfigs, ScraperConfig{
			ScraperID:      s.id,
			CadenceSeconds: s.cadenceSeconds,
			LabelsToScrape: []LabelScrapingConfig{{
				LabelChoices:    labelsAbove(lookup, s.source, cfg.LabelThreshold),
				MaxDataEntities: s.maxDataEntities,
			}},
		})
	}
	return plan
}

func labelsAbove(lookup *domain.DesirabilityLookup, source domain.Source, threshold float64) []string {
	choices := []string{}
	if lookup == nil {
		return choices
	}
	sd, ok := lookup.Source(source)
	if !ok {
		return choices
	}
	for label, factor := range sd.LabelScaleFactors() {
		if factor >= threshold {
			choices = append(choices, label.String())
		}
	}
	slices.Sort(choices)
	return choices
}
