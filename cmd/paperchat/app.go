package main

import (
	"github.com/paperchat/paperchat/internal/chunker"
	"github.com/paperchat/paperchat/internal/config"
	"github.com/paperchat/paperchat/internal/extract"
	"github.com/paperchat/paperchat/internal/llm"
	"github.com/paperchat/paperchat/internal/pipeline"
	"github.com/paperchat/paperchat/internal/storage"
	"github.com/paperchat/paperchat/internal/vectorindex"
)

// app bundles the wired pipelines shared by the serve and ingest commands.
type app struct {
	ingestor *pipeline.Ingestor
	answerer *pipeline.Answerer
}

func buildApp(cfg config.Config, store *storage.Store) app {
	llmClient := llm.New(llm.Options{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		ChatModel:  cfg.OpenAI.ChatModel,
		EmbedModel: cfg.OpenAI.EmbedModel,
	})
	index := vectorindex.New(cfg.Storage.IndexDir, llmClient)

	ingestor := pipeline.NewIngestor(pipeline.IngestorConfig{
		Store:     store,
		Extract:   extract.Text,
		Splitter:  chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap),
		Embedder:  llmClient,
		Generator: llmClient,
		Index:     index,
		OpenAI:    cfg.OpenAI,
	})
	answerer := pipeline.NewAnswerer(pipeline.AnswererConfig{
		Store:     store,
		Generator: llmClient,
		Index:     index,
		OpenAI:    cfg.OpenAI,
		TopK:      cfg.Retrieval.TopK,
		History:   cfg.Retrieval.HistoryTurns,
	})

	return app{ingestor: ingestor, answerer: answerer}
}
