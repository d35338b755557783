package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var clozeToken = regexp.MustCompile(`\[([^\]]+)\]`)

// ClozeTokens returns the bracket-delimited answers of a cloze sentence in order.
func ClozeTokens(sentence string) []string {
	matches := clozeToken.FindAllStringSubmatch(sentence, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[1])
	}
	return tokens
}

// ResolveBlanks pairs every sentence token with a blank by ordinal position.
// A declared blank keeps its id and, when set, its answer. Without tokens the
// declared blanks are returned unchanged.
func ResolveBlanks(q Question) []Blank {
	tokens := ClozeTokens(q.Sentence)
	if len(tokens) == 0 {
		out := make([]Blank, len(q.Blanks))
		copy(out, q.Blanks)
		return out
	}
	out := make([]Blank, len(tokens))
	for i, token := range tokens {
		b := Blank{ID: fmt.Sprintf("blank-%d", i), Answer: token, Position: i}
		if i < len(q.Blanks) {
			if q.Blanks[i].ID != "" {
				b.ID = q.Blanks[i].ID
			}
			if strings.TrimSpace(q.Blanks[i].Answer) != "" {
				b.Answer = q.Blanks[i].Answer
			}
		}
		out[i] = b
	}
	return out
}

func weight(points float64) float64 {
	if points <= 0 {
		return 1
	}
	return points
}

// SubQuestionPoints is the weight of a sub-question, defaulting to 1.
func SubQuestionPoints(sq SubQuestion) float64 { return weight(sq.Points) }

// MaxPoints is the highest score a question can contribute to a submission.
func MaxPoints(q Question) float64 {
	if q.Type == QuestionComprehension {
		total := 0.0
		for _, sq := range q.SubQuestions {
			total += SubQuestionPoints(sq)
		}
		return total
	}
	return weight(q.Points)
}

// MaxScore sums MaxPoints over every question of the form.
func MaxScore(f Form) float64 {
	total := 0.0
	for _, q := range f.Questions {
		total += MaxPoints(q)
	}
	return total
}

// ValidateQuestion reports every authoring problem of q.
func ValidateQuestion(q Question) error {
	var errs []error
	if strings.TrimSpace(q.Text) == "" {
		errs = append(errs, errors.New("question text is required"))
	}
	switch q.Type {
	case QuestionCategorize:
		if len(q.Categories) == 0 {
			errs = append(errs, errors.New("categories are required"))
		}
		if len(q.Items) == 0 {
			errs = append(errs, errors.New("items to categorize are required"))
		}
		known := make(map[string]struct{}, len(q.Categories))
		for i, c := range q.Categories {
			if err := checkID("category", i, c.ID, known); err != nil {
				errs = append(errs, err)
			}
		}
		items := make(map[string]struct{}, len(q.Items))
		for i, it := range q.Items {
			if err := checkID("item", i, it.ID, items); err != nil {
				errs = append(errs, err)
			}
			if it.CorrectCategoryID == "" {
				errs = append(errs, fmt.Errorf("item %d: correct category is required", i+1))
				continue
			}
			if _, ok := known[it.CorrectCategoryID]; !ok {
				errs = append(errs, fmt.Errorf("item %q references unknown category %q", it.ID, it.CorrectCategoryID))
			}
		}
	case QuestionCloze:
		if len(ClozeTokens(q.Sentence)) == 0 {
			errs = append(errs, errors.New("sentence must contain at least one [blank]"))
		}
		blanks := make(map[string]struct{}, len(q.Blanks))
		for i, b := range ResolveBlanks(q) {
			if err := checkID("blank", i, b.ID, blanks); err != nil {
				errs = append(errs, err)
			}
		}
	case QuestionComprehension:
		if len(q.SubQuestions) == 0 {
			errs = append(errs, errors.New("sub-questions are required"))
		}
		subs := make(map[string]struct{}, len(q.SubQuestions))
		for i, sq := range q.SubQuestions {
			if err := checkID("sub-question", i, sq.ID, subs); err != nil {
				errs = append(errs, err)
			}
		}
	case QuestionText:
	default:
		errs = append(errs, fmt.Errorf("unknown question type %q", q.Type))
	}
	return errors.Join(errs...)
}

// checkID rejects empty ids and ids already in seen, then records id.
func checkID(kind string, i int, id string, seen map[string]struct{}) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s %d: id is required", kind, i+1)
	}
	if _, dup := seen[id]; dup {
		return fmt.Errorf("%s %d: duplicate id %q", kind, i+1, id)
	}
	seen[id] = struct{}{}
	return nil
}

// ValidateForm checks a form before it may be published.
func ValidateForm(f Form) error {
	var errs []error
	if strings.TrimSpace(f.Title) == "" {
		errs = append(errs, errors.New("form title is required"))
	}
	if len(f.Questions) == 0 {
		errs = append(errs, errors.New("at least one question is required"))
	}
	seen := make(map[string]struct{}, len(f.Questions))
	for i, q := range f.Questions {
		if q.ID == "" {
			errs = append(errs, fmt.Errorf("question %d: id is required", i+1))
		} else if _, dup := seen[q.ID]; dup {
			errs = append(errs, fmt.Errorf("question %d: duplicate id %q", i+1, q.ID))
		}
		seen[q.ID] = struct{}{}
		if err := ValidateQuestion(q); err != nil {
			errs = append(errs, fmt.Errorf("question %d: %w", i+1, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidForm, errors.Join(errs...))
}
