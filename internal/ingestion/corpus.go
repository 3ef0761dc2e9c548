package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
)

// corpusFile is one parsed corpus text file: `key: value` header lines, a
// `---` delimiter line, then the free-text body.
type corpusFile struct {
	Path     string
	Header   map[string]string
	Body     string
	bodyHead string
}

// headerDelimiter separates the metadata header from the document body.
const headerDelimiter = "---"

// listCorpusFiles returns the .txt files of dir in lexical order, so repeated
// ingestion runs over the same corpus produce identical batch ordering.
func listCorpusFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	return files, nil
}

func parseCorpusFile(path string) (*corpusFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	header := make(map[string]string)
	var bodyLines []string
	var bodyHead string
	inHeader := true

	for _, line := range strings.Split(string(raw), "\n") {
		if inHeader && strings.TrimSpace(line) == headerDelimiter {
			inHeader = false
			continue
		}
		if inHeader {
			key, value, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			if key != "" {
				header[key] = strings.TrimSpace(value)
			}
			continue
		}
		bodyLines = append(bodyLines, line)
		if bodyHead == "" {
			bodyHead = strings.TrimSpace(line)
		}
	}

	return &corpusFile{
		Path:     path,
		Header:   header,
		Body:     strings.TrimSpace(strings.Join(bodyLines, "\n")),
		bodyHead: bodyHead,
	}, nil
}

// Title precedence: page_title header, then the first non-blank body line,
// then a slug derived from the filename.
func (f *corpusFile) Title() string {
	if t := f.Header["page_title"]; t != "" {
		return t
	}
	if f.bodyHead != "" {
		return f.bodyHead
	}
	return f.slugTitle()
}

func (f *corpusFile) slugTitle() string {
	stem := strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
	stem = strings.ReplaceAll(stem, "_", " ")
	stem = strings.ReplaceAll(stem, "-", " ")
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return "Untitled Document"
	}

	words := strings.Fields(stem)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func (f *corpusFile) headerOr(key, fallback string) string {
	if v := f.Header[key]; v != "" {
		return v
	}
	return fallback
}

func (f *corpusFile) RetrievedDate() string {
	return f.headerOr("retrieved_date", time.Now().Format("2006-01-02"))
}
