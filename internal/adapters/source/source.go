// Package source reads the list of listing URLs a run should scrape.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrRead marks a URL list that could not be read.
var ErrRead = errors.New("read url list")

// ReadURLs returns one URL per non-blank line in input order. Lines are
// trimmed, lines starting with "#" are comments. Duplicates are kept.
func ReadURLs(r io.Reader) ([]string, error) {
	urls := []string{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return urls, nil
}

// ReadURLFile reads the URL list at path.
func ReadURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()
	return ReadURLs(f)
}
