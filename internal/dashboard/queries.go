package dashboard

import (
	"context"
	"sort"
	"strings"

	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/models"
	"gorm.io/gorm"
)

// ToneCount is the number of diagnoses with one result tone.
type ToneCount struct {
	Tone   string `json:"tone"`
	Count  int    `json:"count"`
	Latest string `json:"latest,omitempty"` // date of the newest diagnosis
}

// ToneSummary groups diagnoses by tone, most frequent first.
func ToneSummary(list []api.Diagnosis) []ToneCount {
	byTone := make(map[string]*ToneCount)
	for _, d := range list {
		tone := strings.ToLower(d.ResultTone)
		if tone == "" {
			tone = "unknown"
		}
		tc, ok := byTone[tone]
		if !ok {
			tc = &ToneCount{Tone: tone}
			byTone[tone] = tc
		}
		tc.Count++
		if date := api.FormatDate(d.CreatedAt.Time, false); date > tc.Latest {
			tc.Latest = date
		}
	}

	result := make([]ToneCount, 0, len(byTone))
	for _, tc := range byTone {
		result = append(result, *tc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Tone < result[j].Tone
	})
	return result
}

// TargetDeliveryCount holds delivery counts by status for one share target.
type TargetDeliveryCount struct {
	Target string `json:"target"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
	Total  int    `json:"total"`
}

// DeliveryStats returns per-target delivery counts grouped by status.
func DeliveryStats(ctx context.Context, db *gorm.DB) ([]TargetDeliveryCount, error) {
	type row struct {
		Target string
		Status string
		Count  int
	}
	var rows []row
	if err := db.WithContext(ctx).Model(&models.Delivery{}).
		Select("target, status, count(*) as count").
		Group("target, status").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	targetMap := make(map[string]*TargetDeliveryCount)
	for _, r := range rows {
		tc, ok := targetMap[r.Target]
		if !ok {
			tc = &TargetDeliveryCount{Target: r.Target}
			targetMap[r.Target] = tc
		}
		tc.Total += r.Count
		switch r.Status {
		case "sent":
			tc.Sent += r.Count
		case "failed":
			tc.Failed += r.Count
		}
	}

	result := make([]TargetDeliveryCount, 0, len(targetMap))
	for _, tc := range targetMap {
		result = append(result, *tc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Target < result[j].Target })
	return result, nil
}
