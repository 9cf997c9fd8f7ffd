package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
)

func daysAgo(now time.Time, days int) *time.Time {
	t := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func TestComputeChurnRisk(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, models.ChurnAlto, ComputeChurnRisk(models.Student{LastEngagementAt: daysAgo(now, 1)}, true, now))
	assert.Equal(t, models.ChurnMedio, ComputeChurnRisk(models.Student{}, false, now))
	assert.Equal(t, models.ChurnMedio, ComputeChurnRisk(models.Student{LastEngagementAt: daysAgo(now, 45)}, false, now))
	assert.Equal(t, models.ChurnBaixo, ComputeChurnRisk(models.Student{LastEngagementAt: daysAgo(now, 10)}, false, now))
}

func TestBuildChurnAlerts(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	students := []models.Student{
		{ID: "s1", Name: "Ana", LastEngagementAt: daysAgo(now, 2), ChurnRisk: models.ChurnBaixo},
		{ID: "s2", Name: "Bruno", LastEngagementAt: daysAgo(now, 40), ChurnRisk: models.ChurnMedio},
		{ID: "s3", Name: "Carla", ChurnRisk: models.ChurnMedio},
		{ID: "s4", Name: "Diego", LastEngagementAt: daysAgo(now, 5), ChurnRisk: models.ChurnBaixo},
	}
	late := map[string]bool{"s4": true}

	alerts := BuildChurnAlerts(students, late, now)
	require.Len(t, alerts, 3)

	assert.Equal(t, "s3", alerts[0].StudentID, "never engaged comes first")
	assert.Equal(t, ChurnReasonNoEngagement, alerts[0].Reason)
	assert.Equal(t, "s2", alerts[1].StudentID)
	assert.Equal(t, models.ChurnMedio, alerts[1].Risk)
	assert.Equal(t, "s4", alerts[2].StudentID)
	assert.Equal(t, ChurnReasonLatePayment, alerts[2].Reason)
	assert.Equal(t, models.ChurnAlto, alerts[2].Risk)
}

func TestBuildChurnAlerts_Limit(t *testing.T) {
	now := time.Now()
	var students []models.Student
	for i := 0; i < 8; i++ {
		students = append(students, models.Student{ID: string(rune('a' + i)), LastEngagementAt: daysAgo(now, 31+i)})
	}

	alerts := BuildChurnAlerts(students, nil, now)
	require.Len(t, alerts, MaxChurnAlerts)
	assert.Equal(t, "h", alerts[0].StudentID, "oldest engagement first")
}

func TestBuildChurnAlerts_Empty(t *testing.T) {
	alerts := BuildChurnAlerts(nil, nil, time.Now())
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}
