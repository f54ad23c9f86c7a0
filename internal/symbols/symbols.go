// Package symbols converts feed symbol listings into search-widget entries.
package symbols

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Listing is one element of the feed's symbol listing.
type Listing struct {
	Symbol        string `json:"symbol"`
	DisplaySymbol string `json:"displaySymbol"`
	Description   string `json:"description"`
}

// Entry is one search-widget option.
type Entry struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// ToEntry builds the widget entry for l.
// The description is appended after " | " when present.
func ToEntry(l Listing) Entry {
	text := l.DisplaySymbol
	if l.Description != "" {
		text += " | " + l.Description
	}
	return Entry{Value: l.Symbol, Text: text}
}

// Transform reads a JSON array of listings from r and writes a JSON array of
// entries to w, one entry per line.
func Transform(r io.Reader, w io.Writer) (int, error) {
	var listings []Listing
	if err := json.NewDecoder(r).Decode(&listings); err != nil {
		return 0, fmt.Errorf("decode listings: %w", err)
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("[")
	for i, l := range listings {
		data, err := json.Marshal(ToEntry(l))
		if err != nil {
			return i, fmt.Errorf("encode %s: %w", l.Symbol, err)
		}
		if i > 0 {
			bw.WriteString(",")
		}
		bw.WriteString("\n")
		bw.Write(data)
	}
	bw.WriteString("\n]\n")

	if err := bw.Flush(); err != nil {
		return len(listings), fmt.Errorf("write entries: %w", err)
	}
	return len(listings), nil
}
