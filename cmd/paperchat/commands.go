package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/paperchat/paperchat/internal/config"
	"github.com/paperchat/paperchat/internal/storage"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>",
	Short: "Ingest a PDF without starting the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		src, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening PDF: %w", err)
		}
		defer src.Close()

		docID := uuid.New().String()
		if err := os.MkdirAll(cfg.Storage.UploadDir, 0o755); err != nil {
			return fmt.Errorf("creating upload directory: %w", err)
		}
		path := filepath.Join(cfg.Storage.UploadDir, docID+".pdf")
		dst, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating upload file: %w", err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return fmt.Errorf("copying PDF: %w", err)
		}
		if err := dst.Close(); err != nil {
			return fmt.Errorf("closing upload file: %w", err)
		}

		doc := storage.Document{
			ID:       docID,
			Filename: filepath.Base(args[0]),
			Path:     path,
		}
		if err := store.CreateDocument(doc); err != nil {
			return fmt.Errorf("creating document: %w", err)
		}

		printStep("ingesting %s", doc.Filename)
		if err := buildApp(cfg, store).ingestor.Ingest(context.Background(), docID); err != nil {
			return fmt.Errorf("ingesting PDF: %w", err)
		}

		printSuccess("document processed")
		fmt.Println(docID)
		return nil
	},
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List processed documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		docs, err := store.ListProcessedDocuments()
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		if len(docs) == 0 {
			fmt.Println("no processed documents")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%s  %s  %s\n", d.ID, d.UploadedAt.Format("2006-01-02 15:04"), colorize(colorBold, d.Filename))
		}
		return nil
	},
}
