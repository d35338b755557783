package domain

import (
	"encoding/json"
	"time"
)

// QuestionType enumerates the supported question variants.
type QuestionType string

const (
	QuestionCategorize    QuestionType = "categorize"
	QuestionCloze         QuestionType = "cloze"
	QuestionComprehension QuestionType = "comprehension"
	QuestionText          QuestionType = "text"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionCategorize, QuestionCloze, QuestionComprehension, QuestionText:
		return true
	}
	return false
}

// FormStatus is the lifecycle state of a form.
type FormStatus string

const (
	StatusDraft     FormStatus = "draft"
	StatusPublished FormStatus = "published"
	StatusClosed    FormStatus = "closed"
)

// Category is a bucket items can be sorted into.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts either an object or a bare category name.
func (c *Category) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		c.ID, c.Name = name, name
		return nil
	}
	type plain Category
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Category(p)
	if c.ID == "" {
		c.ID = c.Name
	}
	return nil
}

// Item is a draggable entry of a categorize question.
type Item struct {
	ID                string `json:"id"`
	Text              string `json:"text"`
	Image             string `json:"image,omitempty"`
	CorrectCategoryID string `json:"correctCategoryId,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare item text. The correct
// category may also be given as "correctCategory".
func (it *Item) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		it.ID, it.Text = text, text
		return nil
	}
	type plain Item
	var p struct {
		plain
		CorrectCategory string `json:"correctCategory"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*it = Item(p.plain)
	if it.CorrectCategoryID == "" {
		it.CorrectCategoryID = p.CorrectCategory
	}
	if it.ID == "" {
		it.ID = it.Text
	}
	return nil
}

// Blank is one fill-in slot of a cloze sentence.
type Blank struct {
	ID       string `json:"id"`
	Answer   string `json:"answer"`
	Position int    `json:"position"`
}

// SubQuestion is a nested question of a comprehension passage.
type SubQuestion struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Type          string   `json:"type"` // multiple-choice | text
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Points        float64  `json:"points"` // defaults to 1 if zero
}

// Question is a single typed prompt of a form.
type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Text        string       `json:"text"`
	Description string       `json:"description,omitempty"`
	Image       string       `json:"image,omitempty"`
	Required    bool         `json:"required"`
	Points      float64      `json:"points"` // defaults to 1 if zero
	Order       int          `json:"order"`

	Categories []Category `json:"categories,omitempty"`
	Items      []Item     `json:"items,omitempty"`

	Sentence string   `json:"sentence,omitempty"`
	Blanks   []Blank  `json:"blanks,omitempty"`
	Options  []string `json:"options,omitempty"`

	Passage      string        `json:"passage,omitempty"`
	SubQuestions []SubQuestion `json:"subQuestions,omitempty"`
}

// Settings are respondent-facing form options.
type Settings struct {
	AllowAnonymous           bool `json:"allowAnonymous"`
	RequireEmail             bool `json:"requireEmail"`
	AllowMultipleSubmissions bool `json:"allowMultipleSubmissions"`
	ShowProgressBar          bool `json:"showProgressBar"`
	ShuffleQuestions         bool `json:"shuffleQuestions"`
	TimeLimit                int  `json:"timeLimit,omitempty"` // minutes
	ShowCorrectAnswers       bool `json:"showCorrectAnswers"`
	ShowScores               bool `json:"showScores"`
}

// DefaultSettings mirrors the defaults new forms are created with.
func DefaultSettings() Settings {
	return Settings{AllowAnonymous: true, ShowProgressBar: true}
}

// FormAnalytics holds the running counters attached to a form.
type FormAnalytics struct {
	TotalViews            int64   `json:"totalViews"`
	TotalSubmissions      int64   `json:"totalSubmissions"`
	AverageCompletionTime float64 `json:"averageCompletionTime"`
	AverageScore          float64 `json:"averageScore"`
}

// Form is a named, ordered collection of questions.
type Form struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	HeaderImage string        `json:"headerImage,omitempty"`
	Questions   []Question    `json:"questions"`
	Settings    Settings      `json:"settings"`
	Status      FormStatus    `json:"status"`
	Analytics   FormAnalytics `json:"analytics"`
	CreatedBy   string        `json:"createdBy,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	PublishedAt *time.Time    `json:"publishedAt,omitempty"`
	ClosedAt    *time.Time    `json:"closedAt,omitempty"`
}

// IsPublished reports whether the form accepts submissions.
func (f Form) IsPublished() bool { return f.Status == StatusPublished }

// Question returns the question with the given id.
func (f Form) Question(id string) (Question, bool) {
	for _, q := range f.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// CategoryPlacement lists the items a respondent dropped into a category.
type CategoryPlacement struct {
	CategoryID string   `json:"categoryId"`
	ItemIDs    []string `json:"itemIds"`
}

// BlankAnswer is a respondent's fill for one blank.
type BlankAnswer struct {
	BlankID string `json:"blankId"`
	Answer  string `json:"answer"`
}

// SubAnswer is a respondent's answer to a comprehension sub-question.
type SubAnswer struct {
	SubQuestionID string  `json:"subQuestionId"`
	Answer        string  `json:"answer"`
	IsCorrect     bool    `json:"isCorrect"`
	Points        float64 `json:"points"`
}

// Answer is the canonical, scored answer to one question. Exactly one payload
// field is populated, according to QuestionType.
type Answer struct {
	QuestionID   string       `json:"questionId"`
	QuestionType QuestionType `json:"questionType"`

	Categorization []CategoryPlacement `json:"categorization,omitempty"`
	Blanks         []BlankAnswer       `json:"blanks,omitempty"`
	SubAnswers     []SubAnswer         `json:"subAnswers,omitempty"`
	Text           string              `json:"text,omitempty"`

	TimeSpent int     `json:"timeSpent,omitempty"` // seconds
	IsCorrect bool    `json:"isCorrect"`
	Score     float64 `json:"score"`
}

// Response is one respondent's submission against a form.
type Response struct {
	ID              string     `json:"id"`
	FormID          string     `json:"formId"`
	RespondentEmail string     `json:"respondentEmail,omitempty"`
	RespondentName  string     `json:"respondentName,omitempty"`
	Answers         []Answer   `json:"answers"`
	TotalScore      float64    `json:"totalScore"`
	MaxScore        float64    `json:"maxScore"`
	CompletionTime  int        `json:"completionTime,omitempty"` // seconds
	StartedAt       time.Time  `json:"startedAt"`
	SubmittedAt     time.Time  `json:"submittedAt"`
	IsCompleted     bool       `json:"isCompleted"`
	IPAddress       string     `json:"ipAddress,omitempty"`
	UserAgent       string     `json:"userAgent,omitempty"`
	ManualScore     *float64   `json:"manualScore,omitempty"`
	GradedBy        string     `json:"gradedBy,omitempty"`
	GradedAt        *time.Time `json:"gradedAt,omitempty"`
}

// ManualGrade overrides the automatic score of a response.
type ManualGrade struct {
	Score    float64 `json:"score" validate:"gte=0"`
	GradedBy string  `json:"gradedBy"`
}

// FillSession marks when a respondent opened a form.
type FillSession struct {
	ID        string    `json:"id"`
	FormID    string    `json:"formId"`
	StartedAt time.Time `json:"startedAt"`
}
