package analytics

import (
	"bytes"
	"encoding/csv"
	"sync"
	"testing"
	"time"

	"formbuilder-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunningAverage(t *testing.T) {
	assert.Equal(t, 10.0, RunningAverage(0, 0, 10))
	assert.Equal(t, 15.0, RunningAverage(10, 1, 20))
	assert.Equal(t, 4.0, RunningAverage(3, 2, 6))
}

func TestApplySubmissionKeepsTimeWhenUnknown(t *testing.T) {
	a := ApplySubmission(domain.FormAnalytics{}, 120, 4)
	a = ApplySubmission(a, 0, 8)

	assert.Equal(t, int64(2), a.TotalSubmissions)
	assert.Equal(t, 120.0, a.AverageCompletionTime)
	assert.Equal(t, 6.0, a.AverageScore)
}

func TestApplyView(t *testing.T) {
	a := ApplyView(ApplyView(domain.FormAnalytics{}))
	assert.Equal(t, int64(2), a.TotalViews)
	assert.Zero(t, a.TotalSubmissions)
}

func TestApplySubmissionSerialized(t *testing.T) {
	var (
		mu sync.Mutex
		a  domain.FormAnalytics
		wg sync.WaitGroup
	)
	for _, score := range []float64{10, 20} {
		wg.Add(1)
		go func(s float64) {
			defer wg.Done()
			mu.Lock()
			a = ApplySubmission(a, 30, s)
			mu.Unlock()
		}(score)
	}
	wg.Wait()

	assert.Equal(t, int64(2), a.TotalSubmissions)
	assert.Equal(t, 15.0, a.AverageScore)
}

func TestComputeNoResponses(t *testing.T) {
	s := Compute(domain.Form{ID: "f"}, nil)

	assert.Equal(t, 0, s.TotalResponses)
	assert.Equal(t, 0.0, s.AverageScore)
	assert.Equal(t, 0.0, s.CompletionRate)
	assert.Equal(t, 0.0, s.AverageTime)
	require.Len(t, s.ScoreDistribution, 5)
	for _, b := range s.ScoreDistribution {
		assert.Zero(t, b.Count)
	}
	assert.NotNil(t, s.SubmissionTrend)
}

func sampleResponses() []domain.Response {
	day1 := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	return []domain.Response{
		{ID: "r1", TotalScore: 1, MaxScore: 10, CompletionTime: 60, IsCompleted: true, SubmittedAt: day1},
		{ID: "r2", TotalScore: 7, MaxScore: 10, CompletionTime: 0, IsCompleted: true, SubmittedAt: day1},
		{ID: "r3", TotalScore: 10, MaxScore: 10, CompletionTime: 100, IsCompleted: false, SubmittedAt: day2},
	}
}

func TestComputeSummary(t *testing.T) {
	responses := sampleResponses()
	before := append([]domain.Response(nil), responses...)

	s := Compute(domain.Form{ID: "f"}, responses)

	assert.Equal(t, 3, s.TotalResponses)
	assert.Equal(t, 2, s.CompletedResponses)
	assert.Equal(t, 66.67, s.CompletionRate)
	assert.Equal(t, 6.0, s.AverageScore)
	assert.Equal(t, 53.0, s.AverageTime)
	assert.Equal(t, 1.0, s.LowestScore)
	assert.Equal(t, 10.0, s.HighestScore)
	assert.Equal(t, 7.0, s.MedianScore)
	assert.Equal(t, 60, s.MedianTime)
	assert.Equal(t, 2, s.PassCount)
	assert.Equal(t, 66.67, s.PassRate)

	counts := make([]int, len(s.ScoreDistribution))
	for i, b := range s.ScoreDistribution {
		counts[i] = b.Count
	}
	assert.Equal(t, []int{1, 0, 0, 1, 1}, counts)
	assert.Equal(t, []TrendPoint{{Date: "2024-03-01", Count: 2}, {Date: "2024-03-02", Count: 1}}, s.SubmissionTrend)

	assert.Equal(t, before, responses)
	assert.Equal(t, s, Compute(domain.Form{ID: "f"}, responses))
}

func TestComputeZeroMaxScoreCountsAsZeroPercent(t *testing.T) {
	s := Compute(domain.Form{}, []domain.Response{{TotalScore: 0, MaxScore: 0, SubmittedAt: time.Now()}})
	assert.Equal(t, 1, s.ScoreDistribution[0].Count)
	assert.Zero(t, s.PassCount)
}

func TestQuestionStats(t *testing.T) {
	form := domain.Form{Questions: []domain.Question{
		{ID: "q1", Type: domain.QuestionText},
		{ID: "q2", Type: domain.QuestionCloze, Sentence: "[a] [b]"},
	}}
	responses := []domain.Response{
		{Answers: []domain.Answer{{QuestionID: "q2", Score: 2, IsCorrect: true}}},
		{Answers: []domain.Answer{{QuestionID: "q2", Score: 1}, {QuestionID: "gone"}}},
	}

	stats := Compute(form, responses).Questions

	require.Len(t, stats, 2)
	assert.Equal(t, 0, stats[0].Answered)
	assert.Equal(t, 2, stats[1].Answered)
	assert.Equal(t, 1, stats[1].Correct)
	assert.Equal(t, 1.5, stats[1].AverageScore)
	assert.Equal(t, 2.0, stats[1].MaxPoints)
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	responses := sampleResponses()
	responses[0].RespondentName = "Ada"
	responses[0].RespondentEmail = "ada@example.com"

	require.NoError(t, ExportCSV(&buf, responses))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, []string{"Ada", "ada@example.com", "1/10", "10.0%", "1m 0s", "2024-03-01", "Completed"}, rows[1])
	assert.Equal(t, "Anonymous", rows[2][0])
	assert.Equal(t, "Incomplete", rows[3][6])
	assert.Equal(t, "1m 40s", rows[3][4])
}

func TestScoreDistributionBandEdges(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		band  int
	}{
		{name: "zero", score: 0, band: 0},
		{name: "exactly 20", score: 20, band: 0},
		{name: "just above 20", score: 20.5, band: 1},
		{name: "exactly 40", score: 40, band: 1},
		{name: "exactly 60", score: 60, band: 2},
		{name: "exactly 80", score: 80, band: 3},
		{name: "just above 80", score: 80.5, band: 4},
		{name: "full marks", score: 100, band: 4},
		{name: "above max", score: 130, band: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := Compute(domain.Form{ID: "f"}, []domain.Response{{TotalScore: tc.score, MaxScore: 100, IsCompleted: true}})
			for i, b := range s.ScoreDistribution {
				want := 0
				if i == tc.band {
					want = 1
				}
				assert.Equal(t, want, b.Count, "band %s", b.Range)
			}
			assert.Equal(t, tc.score > PassThreshold, s.PassCount == 1)
		})
	}
}
