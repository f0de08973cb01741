// Copyright 2021 Silvio Böhler
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package nexo reads Nexo CSV transaction exports.
package nexo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sboehler/nexotax/lib/model/transaction"
)

// Column names of the export.
const (
	ColTransaction    = "Transaction"
	ColType           = "Type"
	ColInputCurrency  = "Input Currency"
	ColInputAmount    = "Input Amount"
	ColOutputCurrency = "Output Currency"
	ColOutputAmount   = "Output Amount"
	ColUSDEquivalent  = "USD Equivalent"
	ColFee            = "Fee"
	ColFeeCurrency    = "Fee Currency"
	ColDetails        = "Details"
	ColTime           = "Date / Time (UTC)"
)

// RequiredColumns must be present in every export.
var RequiredColumns = []string{
	ColTransaction,
	ColType,
	ColInputCurrency,
	ColInputAmount,
	ColOutputCurrency,
	ColOutputAmount,
	ColUSDEquivalent,
	ColDetails,
	ColTime,
}

// ErrNoHeader is returned for empty input.
var ErrNoHeader = errors.New("CSV file is empty or has no header row")

// SchemaError is returned when required columns are missing.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("CSV file is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ValidateHeader checks that the header row contains all required columns.
// Extra columns are allowed.
func ValidateHeader(header []string) error {
	if len(header) == 0 {
		return ErrNoHeader
	}
	var present = make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// Read reads all rows of an export. A UTF-8 byte order mark is skipped.
func Read(r io.Reader, source string) ([]*transaction.Raw, error) {
	p := parser{
		reader: csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))),
		source: source,
	}
	if err := p.parse(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return p.rows, nil
}

type parser struct {
	reader *csv.Reader
	source string
	index  map[string]int
	rows   []*transaction.Raw
}

func (p *parser) parse() error {
	p.reader.FieldsPerRecord = -1
	p.reader.TrimLeadingSpace = true

	r, err := p.reader.Read()
	if err == io.EOF {
		return ErrNoHeader
	}
	if err != nil {
		return err
	}
	if err := p.parseHeader(r); err != nil {
		return err
	}
	for {
		if r, err = p.reader.Read(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err = p.parseRow(r); err != nil {
			return err
		}
	}
}

func (p *parser) parseHeader(r []string) error {
	if err := ValidateHeader(r); err != nil {
		return err
	}
	p.index = make(map[string]int, len(r))
	for i, h := range r {
		p.index[strings.TrimSpace(h)] = i
	}
	return nil
}

func (p *parser) parseRow(r []string) error {
	if len(r) == 1 && strings.TrimSpace(r[0]) == "" {
		return nil
	}
	line, _ := p.reader.FieldPos(0)
	if len(r) < len(p.index) {
		return fmt.Errorf("line %d: expected %d fields, got %d", line, len(p.index), len(r))
	}
	p.rows = append(p.rows, &transaction.Raw{
		ID:             p.field(r, ColTransaction),
		Type:           p.field(r, ColType),
		InputCurrency:  p.field(r, ColInputCurrency),
		InputAmount:    p.field(r, ColInputAmount),
		OutputCurrency: p.field(r, ColOutputCurrency),
		OutputAmount:   p.field(r, ColOutputAmount),
		USDEquivalent:  p.field(r, ColUSDEquivalent),
		Fee:            p.field(r, ColFee),
		FeeCurrency:    p.field(r, ColFeeCurrency),
		Details:        p.field(r, ColDetails),
		Time:           p.field(r, ColTime),
		Source:         p.source,
		Line:           line,
	})
	return nil
}

func (p *parser) field(r []string, col string) string {
	i, ok := p.index[col]
	if !ok || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

// Dedupe drops rows whose transaction id has been seen before. Exports
// covering overlapping periods repeat rows; the first occurrence wins. Rows
// without an id are always kept. It returns the remaining rows and the
// number of dropped rows.
func Dedupe(rows []*transaction.Raw) ([]*transaction.Raw, int) {
	var (
		seen    = make(map[string]bool, len(rows))
		res     = make([]*transaction.Raw, 0, len(rows))
		dropped int
	)
	for _, r := range rows {
		if r.ID == "" {
			res = append(res, r)
			continue
		}
		if seen[r.ID] {
			dropped++
			continue
		}
		seen[r.ID] = true
		res = append(res, r)
	}
	return res, dropped
}
