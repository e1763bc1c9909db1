// Package search maintains the secondary full-text index over NC programs.
// The relational store stays the source of truth; the index may lag behind it.
package search

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned when no search backend is configured.
var ErrUnavailable = errors.New("search index unavailable")

// Document is the indexed projection of a program.
type Document struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PartNumber   string `json:"partNumber"`
	Revision     string `json:"revision"`
	Customer     string `json:"customer"`
	Description  string `json:"description"`
	Operation    string `json:"operation"`
	Material     string `json:"material"`
	Status       string `json:"status"`
	MachineID    string `json:"machineId"`
	MachineName  string `json:"machineName"`
	AuthorID     string `json:"authorId"`
	LastModified int64  `json:"lastModified"`
}

// Filter restricts a query on filterable attributes. Empty fields are ignored.
type Filter struct {
	Status    string
	MachineID string
	Customer  string
}

// Expression renders the filter in Meilisearch filter syntax.
func (f Filter) Expression() string {
	var parts []string
	add := func(attr, value string) {
		if value != "" {
			parts = append(parts, attr+` = "`+strings.ReplaceAll(value, `"`, `\"`)+`"`)
		}
	}
	add("status", f.Status)
	add("machineId", f.MachineID)
	add("customer", f.Customer)
	return strings.Join(parts, " AND ")
}

// Index is the contract of a search backend.
type Index interface {
	// Configure creates the index and sets its attribute rules.
	Configure(ctx context.Context) error
	Upsert(ctx context.Context, docs ...Document) error
	Delete(ctx context.Context, id string) error
	// Search returns matching program ids, most recently modified first.
	Search(ctx context.Context, query string, filter Filter, limit int) ([]string, error)
	// Clear drops every document.
	Clear(ctx context.Context) error
}

// Disabled stands in when no search host is configured.
type Disabled struct{}

func (Disabled) Configure(context.Context) error          { return nil }
func (Disabled) Upsert(context.Context, ...Document) error { return ErrUnavailable }
func (Disabled) Delete(context.Context, string) error      { return ErrUnavailable }
func (Disabled) Clear(context.Context) error               { return ErrUnavailable }

func (Disabled) Search(context.Context, string, Filter, int) ([]string, error) {
	return nil, ErrUnavailable
}
