// Command client is an interactive shell for the retrieval engine's public
// API. Documents are tokenized locally before being submitted, so the
// gateway receives pre-computed term frequencies.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/resilience"
)

type shell struct {
	baseURL  string
	clientID string
	http     *http.Client
	retry    resilience.RetryConfig
	out      io.Writer
}

func main() {
	baseURL := flag.String("gateway", "http://localhost:8082", "gateway base URL")
	clientID := flag.String("client-id", "", "client id (register to obtain one)")
	flag.Parse()

	s := &shell{
		baseURL:  strings.TrimRight(*baseURL, "/"),
		clientID: *clientID,
		http:     &http.Client{Timeout: 30 * time.Second},
		retry:    resilience.RetryConfig{MaxAttempts: 3},
		out:      os.Stdout,
	}

	fmt.Fprintln(s.out, "retrieval engine shell. commands: register | index-file <path> | index-json <json> | search <terms...> | search-json <json> | pwd | quit")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "quit", "exit":
			return
		case "pwd":
			wd, err := os.Getwd()
			if err != nil {
				s.errorf("pwd: %v", err)
				continue
			}
			fmt.Fprintln(s.out, wd)
		case "register":
			s.register()
		case "index-file":
			if len(args) != 1 {
				s.errorf("usage: index-file <path>")
				continue
			}
			s.indexFile(args[0])
		case "index-json":
			s.indexJSON(strings.TrimPrefix(line, "index-json "))
		case "search":
			s.search(strings.Join(args, " "))
		case "search-json":
			s.searchJSON(strings.TrimPrefix(line, "search-json "))
		default:
			s.errorf("unknown command %q", cmd)
		}
	}
}

func (s *shell) register() {
	var resp proto.RegisterResponse
	if err := s.post("/api/v1/register", nil, &resp); err != nil {
		s.errorf("register: %v", err)
		return
	}
	s.clientID = resp.ClientID
	fmt.Fprintf(s.out, "registered, client id: %s\n", resp.ClientID)
}

// indexFile reads and tokenizes a local file, then submits its term
// frequencies under the file's path. Relative paths are resolved against the
// working directory, then its parent.
func (s *shell) indexFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil && os.IsNotExist(err) && !filepath.IsAbs(path) {
		data, err = os.ReadFile(filepath.Join("..", path))
	}
	if err != nil {
		s.errorf("reading %s: %v", path, err)
		return
	}
	s.submitIndex(path, tokenizer.TermFreqs(string(data)))
}

// indexJSON submits a raw index payload, e.g.
// {"path":"a.txt","termFreqs":{"cat":2}}.
func (s *shell) indexJSON(raw string) {
	var req struct {
		Path      string         `json:"path"`
		Text      string         `json:"text"`
		TermFreqs map[string]int `json:"termFreqs"`
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		s.errorf("invalid json: %v", err)
		return
	}
	if req.TermFreqs == nil {
		req.TermFreqs = tokenizer.TermFreqs(req.Text)
	}
	s.submitIndex(req.Path, req.TermFreqs)
}

func (s *shell) submitIndex(path string, termFreqs map[string]int) {
	if s.clientID == "" {
		s.register()
	}
	if s.clientID == "" {
		s.errorf("not registered")
		return
	}
	body := map[string]any{"path": path, "termFreqs": termFreqs}
	var resp proto.IndexResponse
	// A failed attempt may have burned a doc id server-side; the retry
	// indexes under a fresh one.
	err := resilience.Retry(context.Background(), "index", s.retry, func() error {
		return s.post("/api/v1/index", body, &resp)
	})
	if err != nil {
		s.errorf("index: %v", err)
		return
	}
	fmt.Fprintf(s.out, "%s indexed as doc %d (%d terms)\n", resp.Path, resp.DocID, len(termFreqs))
}

func (s *shell) search(query string) {
	var resp proto.SearchResponse
	err := resilience.Retry(context.Background(), "search", s.retry, func() error {
		return s.get("/api/v1/search?q="+urlQueryEscape(query), &resp)
	})
	if err != nil {
		s.errorf("search: %v", err)
		return
	}
	s.printResults(resp)
}

// searchJSON submits a raw term list, e.g. {"terms":["cat","dog"]}, using
// the JSON search endpoint directly.
func (s *shell) searchJSON(raw string) {
	var req proto.SearchRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		s.errorf("invalid json: %v", err)
		return
	}
	var resp proto.SearchResponse
	err := resilience.Retry(context.Background(), "search", s.retry, func() error {
		return s.post("/api/v1/search", req, &resp)
	})
	if err != nil {
		s.errorf("search: %v", err)
		return
	}
	s.printResults(resp)
}

func (s *shell) printResults(resp proto.SearchResponse) {
	if resp.Count == 0 {
		fmt.Fprintln(s.out, "no results")
		return
	}
	for i, hit := range resp.Results {
		fmt.Fprintf(s.out, "%2d. %-50s %.0f\n", i+1, hit.Path, hit.Score)
	}
	fmt.Fprintf(s.out, "%d result(s)\n", resp.Count)
}

// ---------- HTTP helpers ----------

func (s *shell) post(path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(http.MethodPost, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.clientID != "" {
		req.Header.Set("X-Client-ID", s.clientID)
	}
	return s.do(req, result)
}

func (s *shell) get(path string, result any) error {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	return s.do(req, result)
}

func (s *shell) do(req *http.Request, result any) error {
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(data, result)
}

func (s *shell) errorf(format string, args ...any) {
	fmt.Fprintf(s.out, "error: "+format+"\n", args...)
}

func urlQueryEscape(q string) string {
	return strings.ReplaceAll(strings.TrimSpace(q), " ", "+")
}
