package services

import (
	"basic-cleaning/models"
	"basic-cleaning/utils"
)

// Optional columns used for the summary when the dataset carries them
const (
	NameColumn  = "name"
	GroupColumn = "neighbourhood_group"
)

// InsightService computes a summary of the cleaned dataset
type InsightService struct {
	logger *utils.Logger
}

// NewInsightService creates a new InsightService
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes the report for a cleaned table published as artifact
func (s *InsightService) Generate(table *models.Table, stats models.CleaningStats, artifact string) *models.InsightReport {
	report := &models.InsightReport{
		Stats:           stats,
		Artifact:        artifact,
		ListingsByGroup: make(map[string]int),
	}

	if table.Len() == 0 {
		s.logger.Warn("no listings left after cleaning", "artifact", artifact)
		return report
	}

	_, hasName := table.Column(NameColumn)
	_, hasGroup := table.Column(GroupColumn)

	var totalPrice float64
	var mostExpensive *models.Listing
	for _, l := range table.Rows {
		report.TotalListings++
		totalPrice += l.Price

		if mostExpensive == nil || l.Price < report.MinPrice {
			report.MinPrice = l.Price
		}
		if mostExpensive == nil || l.Price > report.MaxPrice {
			report.MaxPrice = l.Price
			mostExpensive = l
		}

		if hasGroup {
			if group := table.Value(l, GroupColumn); group != "" {
				report.ListingsByGroup[group]++
			}
		}
	}

	report.AveragePrice = totalPrice / float64(report.TotalListings)
	if hasName {
		report.MostExpensive = table.Value(mostExpensive, NameColumn)
	}

	return report
}
