package pipeline

import "github.com/ternarybob/trendreel/internal/models"

// MockSourceItems returns the fixed dataset substituted when live trend
// acquisition is unavailable. A fresh slice is returned on every call.
func MockSourceItems() []models.SourceItem {
	return []models.SourceItem{
		{
			ID:         "mock-1",
			Title:      "2025 AI trend analysis",
			Tags:       []string{"#ai", "#shorts"},
			ViewCount:  500000,
			Region:     "US",
			GrowthRate: 1.8,
		},
		{
			ID:         "mock-2",
			Title:      "liquid metal experiment",
			Tags:       []string{"#science", "#shorts"},
			ViewCount:  1200000,
			Region:     "US",
			GrowthRate: 2.4,
		},
		{
			ID:         "mock-3",
			Title:      "robot dog tries parkour",
			Tags:       []string{"#robotics", "#shorts"},
			ViewCount:  860000,
			Region:     "US",
			GrowthRate: 1.2,
		},
	}
}
