package auth

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHIBPURL = "https://api.pwnedpasswords.com/range/"
	hibpUserAgent  = "credvault/0.1"
)

// HIBPResult captures whether a password hash suffix was found in the HIBP dataset.
type HIBPResult struct {
	Found bool
	Count int
}

// HIBPClient queries the Pwned Passwords range API using k-anonymity.
// Only the first five hex characters of SHA1(pw) leave the machine.
type HIBPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHIBPClient returns a client against the public endpoint with a short timeout.
func NewHIBPClient() *HIBPClient {
	return &HIBPClient{
		BaseURL: DefaultHIBPURL,
		HTTP:    &http.Client{Timeout: 4 * time.Second},
	}
}

// Check reports whether pw appears in the breach corpus and how often.
// Network and HTTP failures are returned wrapped; the caller decides whether to fail open.
func (c *HIBPClient) Check(ctx context.Context, pw string) (HIBPResult, error) {
	var result HIBPResult

	sum := sha1.Sum([]byte(pw))
	hashHex := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := hashHex[:5], hashHex[5:]

	base := c.BaseURL
	if base == "" {
		base = DefaultHIBPURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+prefix, nil)
	if err != nil {
		return result, fmt.Errorf("hibp request: %w", err)
	}
	req.Header.Set("User-Agent", hibpUserAgent)
	req.Header.Set("Add-Padding", "true")

	resp, err := httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("hibp query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("hibp query: unexpected status %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineSuffix, countStr, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(lineSuffix, suffix) {
			continue
		}

		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return result, fmt.Errorf("hibp parse count: %w", err)
		}
		// padded responses carry fake suffixes with a zero count
		if count == 0 {
			continue
		}
		result.Found = true
		result.Count = count
		return result, nil
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("hibp read response: %w", err)
	}
	return result, nil
}
