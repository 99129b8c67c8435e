package crew

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"deepresearch/internal/models"
)

const (
	linkupDefaultBaseURL = "https://api.linkup.so/v1"
	linkupMaxResults     = 10
)

// linkupClient calls the LinkUp search API.
type linkupClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newLinkupClient(apiKey, baseURL string, client *http.Client) *linkupClient {
	if baseURL == "" {
		baseURL = linkupDefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &linkupClient{apiKey: apiKey, baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

type linkupResult struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

func toSources(results []linkupResult) []models.Source {
	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, models.Source{Title: r.Name, URL: r.URL, Snippet: r.Content})
	}
	return sources
}

// Search posts a query to LinkUp and formats the results as numbered,
// citable findings. depth is "standard" or "deep"; outputType is
// "searchResults" or "sourcedAnswer".
func (l *linkupClient) Search(ctx context.Context, query, depth, outputType string) (string, error) {
	if strings.TrimSpace(l.apiKey) == "" {
		return "", errors.New("linkup: API key is missing")
	}
	if depth == "" {
		depth = "standard"
	}
	if outputType == "" {
		outputType = "searchResults"
	}

	body := map[string]any{
		"q":          query,
		"depth":      depth,
		"outputType": outputType,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	var resp *http.Response
	delay := 1 * time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/search", bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+l.apiKey)

		resp, err = l.client.Do(req)
		if err != nil {
			return "", err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		// Back off and retry on 429, doubling the delay each time up to 30 s.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("linkup http %d", resp.StatusCode)
	}

	var response struct {
		Answer  string `json:"answer"`
		Results []linkupResult `json:"results"`
		Sources []linkupResult `json:"sources"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", err
	}

	results := response.Results
	if len(results) == 0 {
		results = response.Sources
	}
	if len(results) == 0 && response.Answer == "" {
		return "", errors.New("linkup: no results")
	}

	return formatFindings(response.Answer, toSources(results)), nil
}

// formatFindings renders sources as numbered, citable findings so the
// analyst can reference them as [n].
func formatFindings(answer string, sources []models.Source) string {
	var b strings.Builder
	if answer != "" {
		b.WriteString(answer)
		b.WriteString("\n\n")
	}
	for i, s := range sources {
		if i >= linkupMaxResults {
			break
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s\n\n", i+1, s.Title, s.URL, s.Snippet)
	}
	return strings.TrimSpace(b.String())
}
