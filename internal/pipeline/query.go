package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/paperchat/paperchat/internal/config"
	"github.com/paperchat/paperchat/internal/storage"
)

// AnswererConfig collects the collaborators an Answerer needs.
type AnswererConfig struct {
	Store     *storage.Store
	Generator Generator
	Index     Index
	OpenAI    config.OpenAIConfig
	TopK      int
	History   int
	Logger    *slog.Logger
}

// Answerer serves conversational questions about a processed document.
type Answerer struct {
	store     *storage.Store
	generator Generator
	index     Index
	openai    config.OpenAIConfig
	topK      int
	history   int
	logger    *slog.Logger
}

func NewAnswerer(cfg AnswererConfig) *Answerer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	history := cfg.History
	if history <= 0 {
		history = 3
	}
	return &Answerer{
		store:     cfg.Store,
		generator: cfg.Generator,
		index:     cfg.Index,
		openai:    cfg.OpenAI,
		topK:      topK,
		history:   history,
		logger:    logger,
	}
}

// Answer retrieves relevant chunks, composes the prompt with recent
// conversation history, generates the answer and records the turn.
// Returns storage.ErrNotFound for unknown documents and ErrNotReady for
// documents still awaiting ingestion.
func (a *Answerer) Answer(ctx context.Context, documentID, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	doc, err := a.store.GetDocument(documentID)
	if err != nil {
		return "", err
	}
	if !doc.Processed {
		return "", ErrNotReady
	}

	if !a.openai.KeyValid() {
		answer := fmt.Sprintf(dummyAnswerFmt, query)
		if err := a.recordTurn(doc.ID, query, answer); err != nil {
			return "", err
		}
		return answer, nil
	}

	retrievalQuery, err := a.withHistory(doc.ID, query)
	if err != nil {
		return "", err
	}

	chunks, err := a.index.Search(ctx, doc.ID, retrievalQuery, a.topK)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(answerPromptFmt, strings.Join(chunks, "\n\n"), query)
	answer, err := a.generator.Generate(ctx, prompt, 0.0)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if err := a.recordTurn(doc.ID, query, answer); err != nil {
		return "", err
	}
	return answer, nil
}

// withHistory folds up to the last few conversation turns into the
// retrieval query, oldest first, so follow-up questions retrieve against
// their context. The generation prompt still gets the literal question.
func (a *Answerer) withHistory(documentID, query string) (string, error) {
	turns, err := a.store.RecentTurns(documentID, a.history)
	if err != nil {
		return "", fmt.Errorf("loading conversation history: %w", err)
	}
	if len(turns) == 0 {
		return query, nil
	}

	lines := make([]string, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		lines = append(lines, fmt.Sprintf("User: %s\nAI: %s", turns[i].Query, turns[i].Answer))
	}
	return fmt.Sprintf(historyQuestionFmt, strings.Join(lines, "\n"), query), nil
}

func (a *Answerer) recordTurn(documentID, query, answer string) error {
	turn := storage.ConversationTurn{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Query:      query,
		Answer:     answer,
	}
	if err := a.store.AppendTurn(turn); err != nil {
		return fmt.Errorf("recording conversation turn: %w", err)
	}
	return nil
}
