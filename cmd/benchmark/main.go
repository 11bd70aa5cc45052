// Benchmark tool for exercising a running Kestrel instance.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -rows 50000 -runs 20
//
// This tool:
//   1. Generates a synthetic transaction CSV seeded with known red-flag rows
//   2. Uploads it as a dataset
//   3. Runs repeated full screening passes and reports latency percentiles
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"time"
)

// UploadResponse mirrors the Kestrel POST /datasets response.
type UploadResponse struct {
	DatasetID string `json:"datasetId"`
	Rows      int    `json:"rows"`
	Customers int    `json:"customers"`
}

// ScreenRequest mirrors the Kestrel POST /datasets/{id}/screen body.
type ScreenRequest struct {
	Rules         []string `json:"rules,omitempty"`
	MinViolations int      `json:"minViolations,omitempty"`
	Page          int      `json:"page,omitempty"`
	PageSize      int      `json:"pageSize,omitempty"`
}

// ScreenResponse carries the fields the benchmark reports on.
type ScreenResponse struct {
	Results    map[string][]json.RawMessage `json:"results"`
	Pagination struct {
		TotalCustomers int `json:"totalCustomers"`
	} `json:"pagination"`
}

var types = []string{"deposit", "withdrawal", "transfer", "payment"}
var countries = []string{"Utopia", "Freedonia", "HighRiskLand", "Atlantis"}
var descriptions = []string{
	"salary",
	"grocery store",
	"cash pickup third party",
	"invoice 4411",
	"offshore consulting fee",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	rows := flag.Int("rows", 50000, "Synthetic transactions to generate")
	customers := flag.Int("customers", 500, "Distinct customers in the dataset")
	runs := flag.Int("runs", 20, "Screening passes to time")
	seed := flag.Int64("seed", 42, "RNG seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 120 * time.Second}

	fmt.Printf("Generating %d transactions for %d customers...\n", *rows, *customers)
	csvData := generateCSV(rng, *rows, *customers)

	fmt.Println("Uploading dataset...")
	upload, err := uploadDataset(client, *baseURL, csvData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Dataset %s: %d rows, %d customers\n", upload.DatasetID, upload.Rows, upload.Customers)

	fmt.Printf("Running %d screening passes...\n", *runs)
	latencies := make([]time.Duration, 0, *runs)
	var lastFlagged int
	for i := 0; i < *runs; i++ {
		start := time.Now()
		resp, err := screen(client, *baseURL, upload.DatasetID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "screen failed: %v\n", err)
			os.Exit(1)
		}
		latencies = append(latencies, time.Since(start))
		lastFlagged = resp.Pagination.TotalCustomers
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	fmt.Println()
	fmt.Println("Results:")
	fmt.Printf("  flagged customers (min 2 violations): %d\n", lastFlagged)
	fmt.Printf("  p50: %v\n", latencies[len(latencies)/2])
	fmt.Printf("  p95: %v\n", latencies[len(latencies)*95/100])
	fmt.Printf("  max: %v\n", latencies[len(latencies)-1])
}

func generateCSV(rng *rand.Rand, rows, customers int) []byte {
	var buf bytes.Buffer
	buf.WriteString("transaction_id,customer_id,date,amount,transaction_type,country,description,velocity,account_balance\n")
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		amount := rng.Float64() * 20000
		fmt.Fprintf(&buf, "tx-%d,cust-%d,%s,%.2f,%s,%s,%s,%.1f,%.2f\n",
			i,
			rng.Intn(customers),
			base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339),
			amount,
			types[rng.Intn(len(types))],
			countries[rng.Intn(len(countries))],
			descriptions[rng.Intn(len(descriptions))],
			rng.Float64()*12,
			rng.Float64()*100000,
		)
	}
	return buf.Bytes()
}

func uploadDataset(client *http.Client, baseURL string, csvData []byte) (*UploadResponse, error) {
	resp, err := client.Post(baseURL+"/datasets", "text/csv", bytes.NewReader(csvData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var upload UploadResponse
	if err := json.Unmarshal(body, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

func screen(client *http.Client, baseURL, datasetID string) (*ScreenResponse, error) {
	payload, _ := json.Marshal(ScreenRequest{MinViolations: 2, Page: 1, PageSize: 10})
	resp, err := client.Post(baseURL+"/datasets/"+datasetID+"/screen", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var screenResp ScreenResponse
	if err := json.Unmarshal(body, &screenResp); err != nil {
		return nil, err
	}
	return &screenResp, nil
}
