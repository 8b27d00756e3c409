package interview

import (
	"context"
	"errors"
	"math/rand"
	"sync"
)

// ErrNoQuestions is returned when the bank has no question for the request.
var ErrNoQuestions = errors.New("no questions available")

// Question is a coding problem presented to the candidate.
type Question struct {
	ID          string
	Title       string
	Difficulty  string // Easy, Medium, Hard
	Description string
	Constraints []string
}

// QuestionBank selects questions for an interview. Random picks a question of
// the given difficulty, or any question when difficulty is empty.
type QuestionBank interface {
	Random(ctx context.Context, difficulty string) (*Question, error)
}

// MemoryQuestionBank is an in-process QuestionBank.
type MemoryQuestionBank struct {
	mu        sync.Mutex
	questions []Question
	rng       *rand.Rand
}

// NewMemoryQuestionBank creates a bank over the given questions.
func NewMemoryQuestionBank(questions []Question, seed int64) *MemoryQuestionBank {
	return &MemoryQuestionBank{
		questions: questions,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Random picks a random question matching the difficulty.
func (b *MemoryQuestionBank) Random(ctx context.Context, difficulty string) (*Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var candidates []Question
	for _, q := range b.questions {
		if difficulty == "" || q.Difficulty == difficulty {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoQuestions
	}
	q := candidates[b.rng.Intn(len(candidates))]
	return &q, nil
}

// SeedQuestions is the default question set used when no external bank is
// configured.
func SeedQuestions() []Question {
	return []Question{
		{
			ID:          "two-sum",
			Title:       "Two Sum",
			Difficulty:  "Easy",
			Description: "Given an array of integers and a target, return the indices of the two numbers that add up to the target.",
			Constraints: []string{
				"Exactly one valid answer exists",
				"You may not use the same element twice",
			},
		},
		{
			ID:          "valid-parentheses",
			Title:       "Valid Parentheses",
			Difficulty:  "Easy",
			Description: "Given a string containing only the characters '(', ')', '{', '}', '[' and ']', determine whether the input is valid.",
			Constraints: []string{
				"Open brackets must be closed by the same type of bracket",
				"Open brackets must be closed in the correct order",
			},
		},
		{
			ID:          "lru-cache",
			Title:       "LRU Cache",
			Difficulty:  "Medium",
			Description: "Design a data structure implementing a least-recently-used cache with get and put in O(1) average time.",
			Constraints: []string{
				"get and put must each run in O(1) average time",
				"Evict the least recently used key when capacity is exceeded",
			},
		},
		{
			ID:          "merge-intervals",
			Title:       "Merge Intervals",
			Difficulty:  "Medium",
			Description: "Given a collection of intervals, merge all overlapping intervals and return the result sorted by start.",
			Constraints: []string{
				"Intervals may be given in any order",
			},
		},
		{
			ID:          "word-ladder",
			Title:       "Word Ladder",
			Difficulty:  "Hard",
			Description: "Given two words and a dictionary, find the length of the shortest transformation sequence changing one letter at a time.",
			Constraints: []string{
				"Every intermediate word must exist in the dictionary",
				"Return 0 when no sequence exists",
			},
		},
	}
}
