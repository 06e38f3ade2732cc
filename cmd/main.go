package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/tuber/pkg/chat"
	cfgPkg "github.com/xhad/tuber/pkg/config"
	"github.com/xhad/tuber/pkg/ingest"
	"github.com/xhad/tuber/pkg/llm"
	"github.com/xhad/tuber/pkg/loader"
	"github.com/xhad/tuber/pkg/processor"
	"github.com/xhad/tuber/pkg/retriever"
	"github.com/xhad/tuber/pkg/store"
	"github.com/xhad/tuber/server"
)

type flags struct {
	configPath string
	dbURL      string
	apiKey     string
	port       string
	ingestURL  string
	documentID string
	chatMode   bool
}

func main() {
	// A .env file is optional; real env vars win either way.
	_ = godotenv.Load()

	f := parseFlags()

	config, err := cfgPkg.LoadConfig(f.configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Command line flags override the config file
	if f.dbURL != "" {
		config.Database.URL = f.dbURL
	}
	if f.apiKey != "" {
		config.LLM.APIKey = f.apiKey
	}
	if f.port != "" {
		config.Server.Port = f.port
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}

	if err := run(config, f); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() flags {
	var f flags

	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.StringVar(&f.dbURL, "db-url", "", "PostgreSQL connection string")
	flag.StringVar(&f.apiKey, "api-key", "", "Language model API key")
	flag.StringVar(&f.port, "port", "", "HTTP server port")
	flag.StringVar(&f.ingestURL, "ingest", "", "Video URL to ingest, then exit")
	flag.StringVar(&f.documentID, "document-id", "", "Document id for -ingest (generated if empty)")
	flag.BoolVar(&f.chatMode, "chat", false, "Interactive chat instead of serving HTTP")
	flag.Parse()

	return f
}

func run(config *cfgPkg.Config, f flags) error {
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, config.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	vectorStore, err := store.NewVectorStore(pool, store.VectorStoreConfig{
		TableName:   config.Database.TableName,
		VectorDim:   config.Database.VectorDim,
		SearchLimit: config.Database.SearchLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}

	messageStore, err := store.NewMessageStore(pool, store.MessageStoreConfig{
		TableName: config.Database.MessagesTable,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize message store: %v", err)
	}

	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:       config.LLM.Provider,
		APIKey:         config.LLM.APIKey,
		BaseURL:        config.LLM.BaseURL,
		Model:          config.LLM.Model,
		MaxTokens:      config.LLM.MaxTokens,
		Temperature:    config.LLM.Temperature,
		RequestTimeout: time.Duration(config.LLM.RequestTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider: config.LLM.Provider,
		APIKey:   config.LLM.APIKey,
		BaseURL:  config.LLM.BaseURL,
		Model:    config.LLM.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	transcripts := loader.NewWithConfig(loader.LoaderConfig{
		Language:  config.Loader.Language,
		RateLimit: config.Loader.RateLimit,
		Timeout:   time.Duration(config.Loader.Timeout) * time.Second,
	})

	splitter := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    config.Processor.ChunkSize,
		ChunkOverlap: config.Processor.ChunkOverlap,
	})

	pipeline := ingest.NewPipeline(transcripts, &splitter, embedder, vectorStore)

	historyRetriever := retriever.New(engine, embedder, vectorStore, retriever.RetrieverConfig{
		TopK:             config.Database.SearchLimit,
		RestrictToFilter: config.Chat.RestrictToFilter,
	})

	orchestrator := chat.NewOrchestrator(messageStore, historyRetriever, engine, chat.OrchestratorConfig{
		HistoryLimit:           config.Chat.HistoryLimit,
		PersistPartialOnCancel: config.Chat.PersistPartialOnCancel,
	})

	if f.ingestURL != "" {
		return runIngest(ctx, pipeline, f.ingestURL, f.documentID)
	}

	if f.chatMode {
		return runChat(ctx, orchestrator)
	}

	srv := server.New(pipeline, orchestrator, server.Config{
		Port:       config.Server.Port,
		CORSOrigin: config.Server.CORSOrigin,
	})

	return srv.ListenAndServe()
}

func runIngest(ctx context.Context, pipeline *ingest.Pipeline, url, documentID string) error {
	if documentID == "" {
		documentID = uuid.NewString()
	}

	spinner := getSpinner(" Fetching and embedding transcript...")
	err := pipeline.Ingest(ctx, url, documentID)
	spinner.Finish()
	fmt.Print("\n")

	if err != nil {
		return fmt.Errorf("failed to ingest %s: %v", url, err)
	}

	color.Green("✓ Ingested %s", url)
	color.Cyan("Document id: %s", documentID)
	return nil
}

func runChat(ctx context.Context, orchestrator *chat.Orchestrator) error {
	conversationID := uuid.NewString()

	color.Cyan("\nChat about your ingested videos (type 'exit' to quit)")
	color.Cyan("Conversation id: %s", conversationID)

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" {
			break
		}

		assistantPrompt("\nAssistant: ")

		_, err := orchestrator.AskStream(ctx, chat.Request{
			ConversationID: conversationID,
			Question:       query,
		}, func(fragment string) error {
			fmt.Print(fragment)
			return nil
		})
		fmt.Print("\n")

		if err != nil {
			color.Red("Error: %v", err)
		}
	}

	return nil
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
