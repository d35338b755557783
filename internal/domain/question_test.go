package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBlanksFromSentence(t *testing.T) {
	q := Question{Type: QuestionCloze, Sentence: "The [quick] brown fox jumps over the [lazy] dog."}

	blanks := ResolveBlanks(q)
	require.Len(t, blanks, 2)
	assert.Equal(t, Blank{ID: "blank-0", Answer: "quick", Position: 0}, blanks[0])
	assert.Equal(t, Blank{ID: "blank-1", Answer: "lazy", Position: 1}, blanks[1])
}

func TestResolveBlanksKeepsDeclaredIDs(t *testing.T) {
	q := Question{
		Type:     QuestionCloze,
		Sentence: "The [quick] brown [fox].",
		Blanks: []Blank{
			{ID: "b1", Answer: ""},
			{ID: "b2", Answer: "wolf"},
		},
	}

	blanks := ResolveBlanks(q)
	require.Len(t, blanks, 2)
	assert.Equal(t, "b1", blanks[0].ID)
	assert.Equal(t, "quick", blanks[0].Answer)
	assert.Equal(t, "b2", blanks[1].ID)
	assert.Equal(t, "wolf", blanks[1].Answer)
}

func TestMaxPoints(t *testing.T) {
	tests := []struct {
		name string
		q    Question
		want float64
	}{
		{name: "flat points", q: Question{Type: QuestionCloze, Points: 3}, want: 3},
		{name: "unset points default to one", q: Question{Type: QuestionText}, want: 1},
		{name: "comprehension sums sub-questions", q: Question{
			Type:   QuestionComprehension,
			Points: 10,
			SubQuestions: []SubQuestion{
				{ID: "s1", Points: 2},
				{ID: "s2"},
				{ID: "s3", Points: 0.5},
			},
		}, want: 3.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MaxPoints(tc.q))
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{name: "missing text", q: Question{Type: QuestionText}, wantErr: true},
		{name: "cloze without tokens", q: Question{Type: QuestionCloze, Text: "Fill", Sentence: "no blanks here"}, wantErr: true},
		{name: "cloze ok", q: Question{Type: QuestionCloze, Text: "Fill", Sentence: "a [b] c"}},
		{name: "categorize without categories", q: Question{Type: QuestionCategorize, Text: "Sort", Items: []Item{{ID: "i"}}}, wantErr: true},
		{name: "categorize without items", q: Question{Type: QuestionCategorize, Text: "Sort", Categories: []Category{{ID: "c"}}}, wantErr: true},
		{name: "categorize unknown correct category", q: Question{
			Type:       QuestionCategorize,
			Text:       "Sort",
			Categories: []Category{{ID: "c"}},
			Items:      []Item{{ID: "i", CorrectCategoryID: "x"}},
		}, wantErr: true},
		{name: "comprehension without sub-questions", q: Question{Type: QuestionComprehension, Text: "Read"}, wantErr: true},
		{name: "unknown type", q: Question{Type: "essay", Text: "Write"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuestion(tc.q)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFormWrapsInvalid(t *testing.T) {
	f := Form{Title: "Quiz", Questions: []Question{
		{ID: "q1", Type: QuestionText, Text: "Name?"},
		{ID: "q1", Type: QuestionText, Text: "Again?"},
	}}

	err := ValidateForm(f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidForm))
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestCategoryAndItemDecodeFromStrings(t *testing.T) {
	var q Question
	raw := `{"id":"q","type":"categorize","text":"Sort","categories":["Fruit",{"id":"veg","name":"Vegetable"}],"items":["Apple",{"id":"i2","text":"Carrot","correctCategoryId":"veg"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &q))

	assert.Equal(t, Category{ID: "Fruit", Name: "Fruit"}, q.Categories[0])
	assert.Equal(t, Category{ID: "veg", Name: "Vegetable"}, q.Categories[1])
	assert.Equal(t, "Apple", q.Items[0].ID)
	assert.Equal(t, "veg", q.Items[1].CorrectCategoryID)
}

func TestValidateQuestionRequiresSlotIDs(t *testing.T) {
	tests := []struct {
		name string
		q    Question
		want string
	}{
		{name: "sub-question without id", q: Question{
			Type: QuestionComprehension, Text: "Read",
			SubQuestions: []SubQuestion{{CorrectAnswer: "B"}, {ID: "s2", CorrectAnswer: "C"}},
		}, want: "sub-question 1: id is required"},
		{name: "duplicate sub-question id", q: Question{
			Type: QuestionComprehension, Text: "Read",
			SubQuestions: []SubQuestion{{ID: "s", CorrectAnswer: "B"}, {ID: "s", CorrectAnswer: "C"}},
		}, want: `sub-question 2: duplicate id "s"`},
		{name: "item without id", q: Question{
			Type: QuestionCategorize, Text: "Sort",
			Categories: []Category{{ID: "c"}},
			Items:      []Item{{Text: "Apple", CorrectCategoryID: "c"}},
		}, want: "item 1: id is required"},
		{name: "duplicate item id", q: Question{
			Type: QuestionCategorize, Text: "Sort",
			Categories: []Category{{ID: "c"}},
			Items:      []Item{{ID: "i", CorrectCategoryID: "c"}, {ID: "i", CorrectCategoryID: "c"}},
		}, want: `item 2: duplicate id "i"`},
		{name: "item without correct category", q: Question{
			Type: QuestionCategorize, Text: "Sort",
			Categories: []Category{{ID: "c"}},
			Items:      []Item{{ID: "i"}},
		}, want: "item 1: correct category is required"},
		{name: "duplicate blank id", q: Question{
			Type: QuestionCloze, Text: "Fill", Sentence: "[a] and [b]",
			Blanks: []Blank{{ID: "x"}, {ID: "x"}},
		}, want: `blank 2: duplicate id "x"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuestion(tc.q)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestItemDecodesCorrectCategoryAlias(t *testing.T) {
	var q Question
	raw := `{"id":"q","type":"categorize","text":"Sort","categories":[{"id":"1","name":"Fruit"},{"id":"2","name":"Veg"}],"items":[{"id":"1","text":"Item 1","correctCategory":"1"},{"id":"2","text":"Item 2","correctCategoryId":"2","correctCategory":"1"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &q))

	assert.Equal(t, "1", q.Items[0].CorrectCategoryID)
	assert.Equal(t, "2", q.Items[1].CorrectCategoryID)
	assert.NoError(t, ValidateQuestion(q))
}
