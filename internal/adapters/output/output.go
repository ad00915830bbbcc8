// Package output writes the match set as JSON.
//
// The document is an array of [contributorId, records] pairs:
//
//	[
//	  ["alice", [{"title": "B", "artist": "X", "stars": 4}]]
//	]
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/micahco/sym/internal/domain/match"
)

// Record is one rated release in the output.
type Record struct {
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	Stars  float64 `json:"stars"`
}

// Pair is one contributor and their records, encoded as a two element array.
type Pair struct {
	ContributorID string
	Records       []Record
}

// MarshalJSON implements json.Marshaler.
func (p Pair) MarshalJSON() ([]byte, error) {
	records := p.Records
	if records == nil {
		records = []Record{}
	}
	return json.Marshal([]any{p.ContributorID, records})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Pair) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("pair has %d elements, want 2", len(raw))
	}
	var out Pair
	if err := json.Unmarshal(raw[0], &out.ContributorID); err != nil {
		return fmt.Errorf("contributor id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &out.Records); err != nil {
		return fmt.Errorf("records: %w", err)
	}
	if out.Records == nil {
		out.Records = []Record{}
	}
	*p = out
	return nil
}

// FromSet converts a match set to output pairs, keeping its order.
func FromSet(set match.Set) []Pair {
	pairs := make([]Pair, 0, len(set))
	for _, m := range set {
		records := make([]Record, 0, len(m.Records))
		for _, c := range m.Records {
			records = append(records, Record{Title: c.Release.Title, Artist: c.Release.Artist, Stars: c.Score})
		}
		pairs = append(pairs, Pair{ContributorID: m.ContributorID, Records: records})
	}
	return pairs
}

// Marshal renders set as two-space indented JSON with a trailing newline.
func Marshal(set match.Set) ([]byte, error) {
	b, err := json.MarshalIndent(FromSet(set), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return append(b, '\n'), nil
}

// Encode writes set to w.
func Encode(w io.Writer, set match.Set) error {
	b, err := Marshal(set)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// WriteFile replaces path with the encoded set. The document is written to
// a temporary file in the same directory and renamed into place.
func WriteFile(path string, set match.Set) error {
	b, err := Marshal(set)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// Decode parses a document written by Encode.
func Decode(r io.Reader) ([]Pair, error) {
	var pairs []Pair
	if err := json.NewDecoder(r).Decode(&pairs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if pairs == nil {
		pairs = []Pair{}
	}
	return pairs, nil
}
