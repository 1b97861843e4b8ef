// Package questionfeed reads question sets published in the OpenTDB-style
// JSON shape ({"response_code":0,"results":[...]}), either from an HTTP feed
// or from a local file.
package questionfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultFeedURL = "https://opentdb.com/api.php"
	defaultAmount  = 10
)

// RawQuestion mirrors one entry of the feed payload.
type RawQuestion struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type apiResponse struct {
	ResponseCode int           `json:"response_code"`
	Results      []RawQuestion `json:"results"`
}

type Client struct {
	feedURL    string
	httpClient *http.Client
}

func NewClient(feedURL string, httpClient *http.Client) *Client {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		feedURL:    feedURL,
		httpClient: httpClient,
	}
}

// FetchQuestions asks the feed for amount questions, optionally restricted to
// a feed category id.
func (c *Client) FetchQuestions(ctx context.Context, amount int, category string) ([]RawQuestion, error) {
	if amount <= 0 {
		amount = defaultAmount
	}

	reqURL, err := url.Parse(c.feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	query := reqURL.Query()
	query.Set("amount", strconv.Itoa(amount))
	if category = strings.TrimSpace(category); category != "" {
		query.Set("category", category)
	}
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question feed returned status %d", resp.StatusCode)
	}

	return decode(resp.Body)
}

// LoadFile reads a feed payload saved to disk.
func LoadFile(path string) ([]RawQuestion, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return decode(file)
}

func decode(r io.Reader) ([]RawQuestion, error) {
	var payload apiResponse
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode question feed: %w", err)
	}

	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("question feed response_code=%d", payload.ResponseCode)
	}

	return payload.Results, nil
}
