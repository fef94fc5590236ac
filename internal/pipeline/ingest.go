package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/paperchat/paperchat/internal/chunker"
	"github.com/paperchat/paperchat/internal/config"
	"github.com/paperchat/paperchat/internal/storage"
)

// summaryContextChunks is how many leading chunks feed the summary prompt.
const summaryContextChunks = 10

const summaryTemperature = 0.2

// IngestorConfig collects the collaborators an Ingestor needs.
type IngestorConfig struct {
	Store     *storage.Store
	Extract   ExtractFunc
	Splitter  chunker.Splitter
	Embedder  Embedder
	Generator Generator
	Index     Index
	OpenAI    config.OpenAIConfig
	Logger    *slog.Logger
}

// Ingestor runs the full ingestion pipeline for uploaded documents.
// Concurrent calls for the same document coalesce into a single run.
type Ingestor struct {
	store     *storage.Store
	extract   ExtractFunc
	splitter  chunker.Splitter
	embedder  Embedder
	generator Generator
	index     Index
	openai    config.OpenAIConfig
	logger    *slog.Logger

	group singleflight.Group
}

func NewIngestor(cfg IngestorConfig) *Ingestor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:     cfg.Store,
		extract:   cfg.Extract,
		splitter:  cfg.Splitter,
		embedder:  cfg.Embedder,
		generator: cfg.Generator,
		index:     cfg.Index,
		openai:    cfg.OpenAI,
		logger:    logger,
	}
}

// Ingest processes the document end to end and marks it processed on
// success. A failure before the processed flag leaves the document
// queryable-later: re-running Ingest retries from scratch.
func (ing *Ingestor) Ingest(ctx context.Context, documentID string) error {
	doc, err := ing.store.GetDocument(documentID)
	if err != nil {
		return err
	}

	_, err, _ = ing.group.Do(doc.ID, func() (any, error) {
		return nil, ing.run(ctx, doc)
	})
	return err
}

func (ing *Ingestor) run(ctx context.Context, doc storage.Document) error {
	if !ing.openai.KeyValid() {
		return ing.runDummy(doc)
	}

	segments, err := ing.extract(doc.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	chunks := ing.splitter.SplitTexts(texts)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: document yielded no chunks", ErrExtraction)
	}

	ing.logger.Info("ingesting document",
		"document_id", doc.ID, "filename", doc.Filename, "chunks", len(chunks))

	embeddings, err := ing.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	if err := ing.index.Build(ctx, doc.ID, chunks, embeddings); err != nil {
		return fmt.Errorf("building vector index: %w", err)
	}

	if err := ing.summarize(ctx, doc, chunks); err != nil {
		return err
	}
	if err := ing.extractEntities(ctx, doc, chunks); err != nil {
		return err
	}

	if err := ing.store.MarkProcessed(doc.ID); err != nil {
		return fmt.Errorf("marking document processed: %w", err)
	}

	ing.logger.Info("document processed", "document_id", doc.ID)
	return nil
}

func (ing *Ingestor) summarize(ctx context.Context, doc storage.Document, chunks []string) error {
	head := chunks
	if len(head) > summaryContextChunks {
		head = head[:summaryContextChunks]
	}
	prompt := fmt.Sprintf(summaryPromptFmt, strings.Join(head, " "))

	summary, err := ing.generator.Generate(ctx, prompt, summaryTemperature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if err := ing.store.SetSummary(doc.ID, summary); err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	return nil
}

func (ing *Ingestor) extractEntities(ctx context.Context, doc storage.Document, chunks []string) error {
	head := chunks
	if len(head) > summaryContextChunks {
		head = head[:summaryContextChunks]
	}
	prompt := fmt.Sprintf(entityPromptFmt, strings.Join(head, " "))

	raw, err := ing.generator.Generate(ctx, prompt, summaryTemperature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	entities, ok := parseEntities(raw)
	if !ok {
		// Unparseable entity output is not fatal; the document just
		// ends up with no entity rows.
		ing.logger.Debug("skipping unparseable entity response", "document_id", doc.ID)
		return nil
	}
	for i := range entities {
		entities[i].DocumentID = doc.ID
	}
	if err := ing.store.AddEntities(entities); err != nil {
		return fmt.Errorf("storing entities: %w", err)
	}
	return nil
}

// runDummy completes ingestion without touching the PDF or any model:
// an empty index directory, a placeholder summary and a single
// placeholder entity, so every downstream surface still works.
func (ing *Ingestor) runDummy(doc storage.Document) error {
	ing.logger.Info("no usable OpenAI key, ingesting in dummy mode", "document_id", doc.ID)

	if err := ing.index.CreateEmpty(doc.ID); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	if err := ing.store.SetSummary(doc.ID, DummySummary); err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	err := ing.store.AddEntity(storage.ExtractedEntity{
		DocumentID: doc.ID,
		Type:       DummyEntityType,
		Text:       DummyEntityText,
		Count:      1,
	})
	if err != nil {
		return fmt.Errorf("storing entity: %w", err)
	}
	if err := ing.store.MarkProcessed(doc.ID); err != nil {
		return fmt.Errorf("marking document processed: %w", err)
	}
	return nil
}
