package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"obras/internal/core"
)

// Fixture is the JSON seed format shared by the memory store and the CLI
// seed command. Records flagged deleted are created then soft-deleted.
type Fixture struct {
	Projects []FixtureProject `json:"projects"`
	Segments []FixtureSegment `json:"segments"`
	Invoices []FixtureInvoice `json:"invoices"`
	Expenses []FixtureExpense `json:"expenses"`
}

type (
	FixtureProject struct {
		core.Project
		Deleted bool `json:"deleted,omitempty"`
	}
	FixtureSegment struct {
		core.Segment
		Deleted bool `json:"deleted,omitempty"`
	}
	FixtureInvoice struct {
		core.Invoice
		Deleted bool `json:"deleted,omitempty"`
	}
	FixtureExpense struct {
		core.Expense
		Deleted bool `json:"deleted,omitempty"`
	}
)

// DecodeFixture reads a fixture and validates every record.
func DecodeFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFixture opens path and decodes it.
func LoadFixture(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()
	return DecodeFixture(file)
}

func (f *Fixture) Validate() error {
	for _, p := range f.Projects {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("project %q: %w", p.ID, err)
		}
	}
	for _, s := range f.Segments {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("segment %q: %w", s.ID, err)
		}
	}
	for _, i := range f.Invoices {
		if err := i.Validate(); err != nil {
			return fmt.Errorf("invoice %q: %w", i.ID, err)
		}
	}
	for _, e := range f.Expenses {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expense %q: %w", e.ID, err)
		}
	}
	return nil
}

// Count returns the number of records across collections.
func (f *Fixture) Count() int {
	return len(f.Projects) + len(f.Segments) + len(f.Invoices) + len(f.Expenses)
}

// Apply writes every record to w, projects first.
func (f *Fixture) Apply(ctx context.Context, w RecordWriter) error {
	type ref struct {
		c  Collection
		id string
	}
	var deleted []ref
	mark := func(c Collection, id string, del bool) {
		if del {
			deleted = append(deleted, ref{c, id})
		}
	}

	for _, p := range f.Projects {
		if err := w.CreateProject(ctx, p.Project); err != nil {
			return fmt.Errorf("create project %q: %w", p.ID, err)
		}
		mark(Projects, p.ID, p.Deleted)
	}
	for _, s := range f.Segments {
		if err := w.CreateSegment(ctx, s.Segment); err != nil {
			return fmt.Errorf("create segment %q: %w", s.ID, err)
		}
		mark(Segments, s.ID, s.Deleted)
	}
	for _, i := range f.Invoices {
		if err := w.CreateInvoice(ctx, i.Invoice); err != nil {
			return fmt.Errorf("create invoice %q: %w", i.ID, err)
		}
		mark(Invoices, i.ID, i.Deleted)
	}
	for _, e := range f.Expenses {
		if err := w.CreateExpense(ctx, e.Expense); err != nil {
			return fmt.Errorf("create expense %q: %w", e.ID, err)
		}
		mark(Expenses, e.ID, e.Deleted)
	}

	for _, d := range deleted {
		if err := w.SoftDelete(ctx, d.c, d.id); err != nil {
			return fmt.Errorf("soft delete %s %q: %w", d.c, d.id, err)
		}
	}
	return nil
}
