// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"time"
)

// Transaction is one row of an uploaded transaction dataset.
// Datasets are immutable snapshots: nothing in the screening pipeline
// mutates a Transaction after ingestion.
type Transaction struct {
	// Core identifiers
	ID         string `json:"transactionId"`
	CustomerID string `json:"customerId"`

	// Temporal
	Date time.Time `json:"date"`

	// Financial details
	Amount float64 `json:"amount"`

	// Transaction type (e.g., "deposit", "withdrawal", "transfer")
	Type string `json:"transactionType"`

	// Counterparty country (free-text name, matched exactly against the
	// high-risk country list)
	Country string `json:"country"`

	// Free-text description, matched against the risk keyword list
	Description string `json:"description"`

	// Transactions-per-period rate supplied by the upstream system
	Velocity float64 `json:"velocity"`

	// Account balance at the time of the transaction
	AccountBalance float64 `json:"accountBalance"`
}

// CSVColumns is the required header of an uploaded transaction CSV.
var CSVColumns = []string{
	"transaction_id",
	"customer_id",
	"date",
	"amount",
	"transaction_type",
	"country",
	"description",
	"velocity",
	"account_balance",
}

// Dataset is an uploaded, immutable transaction table.
type Dataset struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Transactions []Transaction `json:"-"`
	UploadedAt   time.Time     `json:"uploadedAt"`
}

// DatasetSummary describes a dataset without its rows.
type DatasetSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Rows        int       `json:"rows"`
	Customers   int       `json:"customers"`
	TotalAmount float64   `json:"totalAmount"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// CustomerSummary aggregates a single customer's activity within a dataset.
type CustomerSummary struct {
	CustomerID        string         `json:"customerId"`
	TotalTransactions int            `json:"totalTransactions"`
	TotalAmount       float64        `json:"totalAmount"`
	AverageAmount     float64        `json:"averageAmount"`
	TransactionTypes  map[string]int `json:"transactionTypes"`
}
