package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mfolsen/brewstock/internal/config"
	"github.com/mfolsen/brewstock/internal/domain"
	"github.com/mfolsen/brewstock/internal/idempotency"
	"github.com/mfolsen/brewstock/internal/kv"
	"github.com/mfolsen/brewstock/internal/mapping"
	"github.com/mfolsen/brewstock/internal/orchestrator"
)

// importer drives one spreadsheet through the import pipeline from the
// command line: upload, apply or collect the column mapping, preview,
// then commit under a stable idempotency key.
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var (
		apiURL      = flag.String("api", "http://localhost:8080/api", "base URL of the import API")
		redisAddr   = flag.String("redis", cfg.RedisAddr, "redis address for cached mappings and the commit ledger (empty for in-memory)")
		userFlag    = flag.String("user", "", "user id (uuid)")
		targetFlag  = flag.String("target", "sales", "import target: sales or ingredients")
		mappingFlag = flag.String("mapping", "", `column mapping as JSON, e.g. {"product_name":"Product Name"} (optional when a cached mapping applies)`)
		commit      = flag.Bool("commit", false, "commit after preview instead of stopping at the preview")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: importer [flags] <file.csv|file.xlsx>")
	}
	filePath := flag.Arg(0)

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		log.Fatalf("Invalid -user: %v", err)
	}
	target := domain.ImportTarget(*targetFlag)
	if !target.Valid() {
		log.Fatalf("Unknown -target %q", *targetFlag)
	}

	payload, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", filePath, err)
	}
	info, err := os.Stat(filePath)
	if err != nil {
		log.Fatalf("Failed to stat %s: %v", filePath, err)
	}

	storage := openStorage(*redisAddr)
	flow := orchestrator.New(
		orchestrator.NewHTTPBackend(*apiURL, nil),
		mapping.NewStore(storage),
		idempotency.NewComputer(),
		idempotency.NewLedger(storage),
		userID,
		target,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	file := idempotency.FileInfo{
		Name:  filepath.Base(filePath),
		Size:  info.Size(),
		MIME:  mimeForExtension(filePath),
		Bytes: payload,
	}
	if err := flow.UploadFile(ctx, file); err != nil {
		log.Fatalf("Upload failed: %v", err)
	}

	if flow.State() == orchestrator.StateMappingRequired {
		if *mappingFlag == "" {
			printMappingHelp(flow, target)
			os.Exit(1)
		}
		var manual domain.FieldMapping
		if err := json.Unmarshal([]byte(*mappingFlag), &manual); err != nil {
			log.Fatalf("Invalid -mapping JSON: %v", err)
		}
		for field, header := range manual {
			if err := flow.AssignField(field, header); err != nil {
				log.Fatalf("Cannot map %s to %q: %v", field, header, err)
			}
		}
		if err := flow.ConfirmMapping(ctx); err != nil {
			log.Fatalf("Mapping rejected: %v", err)
		}
	}

	preview := flow.Preview()
	if preview == nil {
		log.Fatalf("No preview produced (state %s): %v", flow.State(), flow.Err())
	}
	printPreview(preview)

	if !*commit {
		fmt.Println("Re-run with -commit to import these rows.")
		return
	}

	result, err := flow.Commit(ctx)
	if err != nil {
		log.Fatalf("Commit failed: %v", orchestrator.NormalizeServerError(err))
	}
	if result.Replayed {
		fmt.Printf("Already imported earlier; server replayed the receipt (%d rows).\n", result.ImportedCount)
		return
	}
	fmt.Printf("Imported %d rows (%d skipped).\n", result.ImportedCount, result.SkippedRows)
}

func openStorage(redisAddr string) kv.Storage {
	if redisAddr == "" {
		return kv.NewMemoryStorage()
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("Redis unavailable at %s, falling back to in-memory storage: %v", redisAddr, err)
		return kv.NewMemoryStorage()
	}
	return kv.NewRedisStorage(client)
}

func printMappingHelp(flow *orchestrator.Orchestrator, target domain.ImportTarget) {
	fmt.Println("No cached mapping covers this file's columns. Provide -mapping with JSON")
	fmt.Println("from logical field to spreadsheet header.")
	fmt.Println("\nDetected headers:")
	for _, h := range flow.Headers() {
		fmt.Printf("  %q\n", h)
	}
	fmt.Println("\nFields:")
	for _, f := range domain.FieldsFor(target) {
		marker := ""
		if f.Required {
			marker = " (required)"
		}
		fmt.Printf("  %s%s\n", f.Key, marker)
	}
	if cached := flow.Mapping(); len(cached) > 0 {
		pretty, _ := json.Marshal(cached)
		fmt.Printf("\nPartial cached mapping: %s\n", pretty)
	}
}

func printPreview(p *domain.ImportPreview) {
	fmt.Printf("Preview: %d rows, %d invalid\n", p.TotalRows, p.InvalidRows)
	if p.TotalSales > 0 {
		fmt.Printf("  total sales  %.2f\n", p.TotalSales)
		fmt.Printf("  total profit %.2f\n", p.TotalProfit)
	}
	if p.TotalCost > 0 {
		fmt.Printf("  total cost   %.2f\n", p.TotalCost)
	}
	for _, row := range p.Rows {
		if row.ExceedsStock {
			fmt.Printf("  warning: row %d exceeds stock, at most %d can be sold\n", row.RowNumber, row.MaxSellable)
		}
	}
}

func mimeForExtension(path string) string {
	switch filepath.Ext(path) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
