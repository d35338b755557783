package scoring

import (
	"strings"

	"formbuilder-service/internal/domain"
)

// Result is a fully scored submission.
type Result struct {
	Answers    []domain.Answer `json:"answers"`
	TotalScore float64         `json:"totalScore"`
	MaxScore   float64         `json:"maxScore"`
	Issues     []Issue         `json:"issues,omitempty"`
}

// strategy scores a normalized answer in place and returns the points earned.
type strategy func(q domain.Question, a *domain.Answer) float64

var strategies = map[domain.QuestionType]strategy{
	domain.QuestionCategorize:    scoreCategorize,
	domain.QuestionCloze:         scoreCloze,
	domain.QuestionComprehension: scoreComprehension,
	domain.QuestionText:          scoreText,
}

// ScoreSubmission normalizes and scores every raw answer against form. It has
// no side effects and never fails: unknown, mismatched, duplicate and
// malformed answers contribute zero and are listed in Result.Issues.
// MaxScore always covers every question of the form.
func ScoreSubmission(form domain.Form, raw []RawAnswer) Result {
	res := Result{
		Answers:  make([]domain.Answer, 0, len(raw)),
		MaxScore: domain.MaxScore(form),
	}
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		q, ok := form.Question(r.QuestionID)
		if !ok {
			res.Issues = append(res.Issues, Issue{QuestionID: r.QuestionID, Reason: DropUnknownQuestion})
			continue
		}
		if r.QuestionType != q.Type {
			res.Issues = append(res.Issues, Issue{QuestionID: r.QuestionID, Reason: DropTypeMismatch})
			continue
		}
		if _, dup := seen[q.ID]; dup {
			res.Issues = append(res.Issues, Issue{QuestionID: r.QuestionID, Reason: DropDuplicate})
			continue
		}
		seen[q.ID] = struct{}{}

		answer, readable := Normalize(q, r)
		if !readable {
			res.Issues = append(res.Issues, Issue{QuestionID: r.QuestionID, Reason: DropMalformed})
		}
		answer = ScoreAnswer(q, answer)
		res.TotalScore += answer.Score
		res.Answers = append(res.Answers, answer)
	}
	return res
}

// ScoreAnswer computes correctness and points of a normalized answer.
func ScoreAnswer(q domain.Question, a domain.Answer) domain.Answer {
	a.Score, a.IsCorrect = 0, false
	score, ok := strategies[q.Type]
	if !ok {
		return a
	}
	a.Score = score(q, &a)
	return a
}

func equalAnswer(got, want string) bool {
	return strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want))
}

// scoreText never auto-grades free text.
func scoreText(_ domain.Question, a *domain.Answer) float64 {
	a.IsCorrect = false
	return 0
}

// scoreCategorize awards one point per item placed only in its correct category.
func scoreCategorize(q domain.Question, a *domain.Answer) float64 {
	placements := make(map[string][]string, len(q.Items))
	for _, p := range a.Categorization {
		for _, itemID := range p.ItemIDs {
			placements[itemID] = append(placements[itemID], p.CategoryID)
		}
	}
	correct := 0
	for _, it := range q.Items {
		cats := placements[it.ID]
		if it.CorrectCategoryID != "" && len(cats) == 1 && cats[0] == it.CorrectCategoryID {
			correct++
		}
	}
	a.IsCorrect = len(q.Items) > 0 && correct == len(q.Items)
	return float64(correct)
}

// scoreCloze awards one point per blank matched case-insensitively.
func scoreCloze(q domain.Question, a *domain.Answer) float64 {
	blanks := domain.ResolveBlanks(q)
	given := make(map[string]string, len(a.Blanks))
	for _, b := range a.Blanks {
		given[b.BlankID] = b.Answer
	}
	correct := 0
	for _, b := range blanks {
		if v, ok := given[b.ID]; ok && strings.TrimSpace(v) != "" && equalAnswer(v, b.Answer) {
			correct++
		}
	}
	a.IsCorrect = len(blanks) > 0 && correct == len(blanks)
	return float64(correct)
}

// scoreComprehension awards each sub-question its points when answered
// correctly and records the outcome on the sub-answer.
func scoreComprehension(q domain.Question, a *domain.Answer) float64 {
	index := make(map[string]domain.SubQuestion, len(q.SubQuestions))
	for _, sq := range q.SubQuestions {
		index[sq.ID] = sq
	}
	total := 0.0
	correct := 0
	for i := range a.SubAnswers {
		sub := &a.SubAnswers[i]
		sub.IsCorrect, sub.Points = false, 0
		sq, ok := index[sub.SubQuestionID]
		if !ok || strings.TrimSpace(sq.CorrectAnswer) == "" {
			continue
		}
		if equalAnswer(sub.Answer, sq.CorrectAnswer) {
			sub.IsCorrect = true
			sub.Points = domain.SubQuestionPoints(sq)
			total += sub.Points
			correct++
		}
	}
	a.IsCorrect = len(q.SubQuestions) > 0 && correct == len(q.SubQuestions)
	return total
}
