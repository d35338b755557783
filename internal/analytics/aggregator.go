package analytics

import (
	"sort"

	"formbuilder-service/internal/domain"
	"github.com/shopspring/decimal"
)

// PassThreshold is the score percentage a response must exceed to pass.
const PassThreshold = 60.0

// RunningAverage folds v into an average taken over oldCount values.
func RunningAverage(oldAvg float64, oldCount int64, v float64) float64 {
	if oldCount < 0 {
		oldCount = 0
	}
	return (oldAvg*float64(oldCount) + v) / float64(oldCount+1)
}

// ApplyView records one form view.
func ApplyView(a domain.FormAnalytics) domain.FormAnalytics {
	a.TotalViews++
	return a
}

// ApplySubmission records one submission. The completion-time average only
// moves when a completion time is known.
func ApplySubmission(a domain.FormAnalytics, completionTime int, score float64) domain.FormAnalytics {
	old := a.TotalSubmissions
	if completionTime > 0 {
		a.AverageCompletionTime = RunningAverage(a.AverageCompletionTime, old, float64(completionTime))
	}
	a.AverageScore = RunningAverage(a.AverageScore, old, score)
	a.TotalSubmissions = old + 1
	return a
}

// Bucket is one band of the score distribution.
type Bucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// TrendPoint counts submissions on one UTC calendar day.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// QuestionStat summarizes how respondents did on one question.
type QuestionStat struct {
	QuestionID   string              `json:"questionId"`
	QuestionType domain.QuestionType `json:"questionType"`
	Answered     int                 `json:"answered"`
	Correct      int                 `json:"correct"`
	AverageScore float64             `json:"averageScore"`
	MaxPoints    float64             `json:"maxPoints"`
}

// Summary is the batch analytics view of a form's responses.
type Summary struct {
	FormID             string         `json:"formId"`
	TotalResponses     int            `json:"totalResponses"`
	CompletedResponses int            `json:"completedResponses"`
	CompletionRate     float64        `json:"completionRate"`
	AverageScore       float64        `json:"averageScore"`
	AverageTime        float64        `json:"averageTime"`
	MaxScore           float64        `json:"maxScore"`
	HighestScore       float64        `json:"highestScore"`
	LowestScore        float64        `json:"lowestScore"`
	MedianScore        float64        `json:"medianScore"`
	MedianTime         int            `json:"medianTime"`
	PassCount          int            `json:"passCount"`
	PassRate           float64        `json:"passRate"`
	ScoreDistribution  []Bucket       `json:"scoreDistribution"`
	SubmissionTrend    []TrendPoint   `json:"submissionTrend"`
	Questions          []QuestionStat `json:"questions"`
}

var bandLabels = [...]string{"0-20%", "21-40%", "41-60%", "61-80%", "81-100%"}

// Percentage is a response's score as a share of its max score.
func Percentage(r domain.Response) float64 {
	if r.MaxScore <= 0 {
		return 0
	}
	return r.TotalScore / r.MaxScore * 100
}

func band(pct float64) int {
	switch {
	case pct <= 20:
		return 0
	case pct <= 40:
		return 1
	case pct <= 60:
		return 2
	case pct <= 80:
		return 3
	default:
		return 4
	}
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Compute aggregates responses of form. It does not modify its inputs and
// returns zeros rather than NaN when there are no responses.
func Compute(form domain.Form, responses []domain.Response) Summary {
	s := Summary{
		FormID:            form.ID,
		MaxScore:          domain.MaxScore(form),
		ScoreDistribution: make([]Bucket, len(bandLabels)),
		SubmissionTrend:   []TrendPoint{},
		Questions:         questionStats(form, responses),
	}
	for i, label := range bandLabels {
		s.ScoreDistribution[i].Range = label
	}
	n := len(responses)
	s.TotalResponses = n
	if n == 0 {
		return s
	}

	scores := make([]float64, 0, n)
	times := make([]int, 0, n)
	daily := make(map[string]int)
	var scoreSum, timeSum float64
	for _, r := range responses {
		if r.IsCompleted {
			s.CompletedResponses++
		}
		scoreSum += r.TotalScore
		scores = append(scores, r.TotalScore)
		if r.CompletionTime > 0 {
			timeSum += float64(r.CompletionTime)
			times = append(times, r.CompletionTime)
		} else {
			times = append(times, 0)
		}

		pct := Percentage(r)
		s.ScoreDistribution[band(pct)].Count++
		if pct > PassThreshold {
			s.PassCount++
		}
		daily[r.SubmittedAt.UTC().Format("2006-01-02")]++
	}

	// Average time divides by every response, including those without a time.
	s.CompletionRate = round(float64(s.CompletedResponses)/float64(n)*100, 2)
	s.AverageScore = round(scoreSum/float64(n), 2)
	s.AverageTime = round(timeSum/float64(n), 0)
	s.PassRate = round(float64(s.PassCount)/float64(n)*100, 2)

	sort.Float64s(scores)
	sort.Ints(times)
	s.LowestScore = scores[0]
	s.HighestScore = scores[n-1]
	s.MedianScore = scores[n/2]
	s.MedianTime = times[n/2]

	for date, count := range daily {
		s.SubmissionTrend = append(s.SubmissionTrend, TrendPoint{Date: date, Count: count})
	}
	sort.Slice(s.SubmissionTrend, func(i, j int) bool {
		return s.SubmissionTrend[i].Date < s.SubmissionTrend[j].Date
	})
	return s
}

func questionStats(form domain.Form, responses []domain.Response) []QuestionStat {
	stats := make([]QuestionStat, len(form.Questions))
	index := make(map[string]int, len(form.Questions))
	sums := make([]float64, len(form.Questions))
	for i, q := range form.Questions {
		stats[i] = QuestionStat{QuestionID: q.ID, QuestionType: q.Type, MaxPoints: domain.MaxPoints(q)}
		index[q.ID] = i
	}
	for _, r := range responses {
		for _, a := range r.Answers {
			i, ok := index[a.QuestionID]
			if !ok {
				continue
			}
			stats[i].Answered++
			if a.IsCorrect {
				stats[i].Correct++
			}
			sums[i] += a.Score
		}
	}
	for i := range stats {
		if stats[i].Answered > 0 {
			stats[i].AverageScore = round(sums[i]/float64(stats[i].Answered), 2)
		}
	}
	return stats
}
