// Package drivestore implements the board store contract over a Graph-style
// remote drive API: named byte objects in a folder, addressed by path, with
// an ETag per object. Unlike the folder and Redis backends, the drive gives
// us real conditional writes for free - If-Match on update, If-None-Match on
// create - so the adapter mostly translates HTTP status codes into the
// board's error taxonomy.
//
// Authentication is the client-credentials flow: three opaque secrets
// (tenant ID, client ID, client secret) exchanged for bearer tokens, with
// refresh handled by the oauth2 token source.
package drivestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/drey/pkg/board"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"
	tokenURLFormat = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	defaultScope   = "https://graph.microsoft.com/.default"

	// The drive throttles aggressively; stay comfortably under its limits.
	requestsPerSecond = 10
	requestBurst      = 5
)

// Credentials are the three opaque secrets needed to reach the drive.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Options configures a drive store beyond its credentials.
type Options struct {
	// BaseURL overrides the drive API endpoint. Tests point this at a fake.
	BaseURL string

	// TokenURL overrides the token endpoint. Tests point this at a fake.
	TokenURL string

	// SitePath selects the site whose default drive holds the board.
	// Empty means the root site.
	SitePath string

	// Logger for request diagnostics. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// Store is a remote-drive implementation of board.Store. Each message is a
// file inside a per-namespace folder on the drive; the file's ETag is the
// version token.
type Store struct {
	http      *http.Client
	baseURL   string
	sitePath  string
	namespace string
	limiter   *rate.Limiter
	logger    zerolog.Logger

	mu             sync.Mutex
	driveID        string // resolved lazily on first use
	folderProvided bool
}

// New creates a drive store for the given namespace folder.
func New(creds Credentials, namespace string, opts Options) (*Store, error) {
	if creds.TenantID == "" || creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("tenant ID, client ID and client secret are all required")
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf(tokenURLFormat, creds.TenantID)
	}

	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{defaultScope},
	}

	httpClient := cc.Client(context.Background())
	httpClient.Timeout = 30 * time.Second

	return &Store{
		http:      httpClient,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		sitePath:  opts.SitePath,
		namespace: namespace,
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		logger:    opts.Logger,
	}, nil
}

// Get downloads the object and returns its ETag as the version token.
func (s *Store) Get(ctx context.Context, key string) ([]byte, board.Version, error) {
	driveID, err := s.resolveDrive(ctx)
	if err != nil {
		return nil, board.NoVersion, err
	}

	resp, err := s.do(ctx, http.MethodGet, s.contentPath(driveID, key), nil, nil)
	if err != nil {
		return nil, board.NoVersion, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, board.NoVersion, storeErr("read "+key, err)
		}
		return payload, board.Version(resp.Header.Get("ETag")), nil
	case http.StatusNotFound:
		return nil, board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrNotFound)
	default:
		return nil, board.NoVersion, s.statusErr("read "+key, resp)
	}
}

// Put uploads the object conditionally. If-None-Match: * guards creates,
// If-Match guards updates; the drive answers 412 when the condition fails.
func (s *Store) Put(ctx context.Context, key string, payload []byte, expected board.Version) (board.Version, error) {
	if err := s.ensureFolder(ctx); err != nil {
		return board.NoVersion, err
	}
	driveID, err := s.resolveDrive(ctx)
	if err != nil {
		return board.NoVersion, err
	}

	headers := http.Header{"Content-Type": []string{"application/json"}}
	if expected == board.NoVersion {
		headers.Set("If-None-Match", "*")
	} else {
		headers.Set("If-Match", string(expected))
	}

	resp, err := s.do(ctx, http.MethodPut, s.contentPath(driveID, key), bytes.NewReader(payload), headers)
	if err != nil {
		return board.NoVersion, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return board.Version(resp.Header.Get("ETag")), nil
	case http.StatusPreconditionFailed, http.StatusConflict:
		if expected == board.NoVersion {
			return board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrAlreadyExists)
		}
		return board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrConflict)
	case http.StatusNotFound:
		return board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrNotFound)
	default:
		return board.NoVersion, s.statusErr("write "+key, resp)
	}
}

// List enumerates the namespace folder's children and returns object names
// under prefix. The drive pages its listings; the loop follows nextLink
// until the snapshot is exhausted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.ensureFolder(ctx); err != nil {
		return nil, err
	}

	driveID, err := s.resolveDrive(ctx)
	if err != nil {
		return nil, err
	}

	var keys []string
	next := fmt.Sprintf("%s/drives/%s/root:/%s:/children?$top=200", s.baseURL, driveID, url.PathEscape(s.namespace))
	for next != "" {
		resp, err := s.doURL(ctx, http.MethodGet, next, nil, nil)
		if err != nil {
			return nil, err
		}

		var page struct {
			Value []struct {
				Name   string          `json:"name"`
				Folder json.RawMessage `json:"folder,omitempty"`
			} `json:"value"`
			NextLink string `json:"@odata.nextLink"`
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, nil // folder not provisioned yet means no messages
		}
		if resp.StatusCode != http.StatusOK {
			err := s.statusErr("list", resp)
			resp.Body.Close()
			return nil, err
		}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			resp.Body.Close()
			return nil, storeErr("list", err)
		}
		resp.Body.Close()

		for _, item := range page.Value {
			if item.Folder != nil || !strings.HasPrefix(item.Name, prefix) {
				continue
			}
			keys = append(keys, item.Name)
		}
		next = page.NextLink
	}

	return keys, nil
}

// ensureFolder creates the namespace folder once per process. The drive
// answers 409 when it already exists, which is just as good.
func (s *Store) ensureFolder(ctx context.Context) error {
	s.mu.Lock()
	provided := s.folderProvided
	s.mu.Unlock()
	if provided {
		return nil
	}

	driveID, err := s.resolveDrive(ctx)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]any{
		"name":                              s.namespace,
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "fail",
	})
	path := fmt.Sprintf("/drives/%s/root/children", driveID)
	headers := http.Header{"Content-Type": []string{"application/json"}}

	resp, err := s.do(ctx, http.MethodPost, path, bytes.NewReader(body), headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusConflict:
		s.mu.Lock()
		s.folderProvided = true
		s.mu.Unlock()
		return nil
	default:
		return s.statusErr("ensure folder", resp)
	}
}

// resolveDrive looks up the site's default drive ID, caching the result.
func (s *Store) resolveDrive(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.driveID
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	site := s.sitePath
	if site == "" {
		site = "root"
	}
	resp, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/sites/%s/drive", site), nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.statusErr("resolve drive", resp)
	}

	var drive struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&drive); err != nil {
		return "", storeErr("resolve drive", err)
	}
	if drive.ID == "" {
		return "", storeErr("resolve drive", fmt.Errorf("drive response missing id"))
	}

	s.mu.Lock()
	s.driveID = drive.ID
	s.mu.Unlock()
	return drive.ID, nil
}

// contentPath addresses an object's content inside the namespace folder.
func (s *Store) contentPath(driveID, key string) string {
	return fmt.Sprintf("/drives/%s/root:/%s/%s:/content", driveID, url.PathEscape(s.namespace), url.PathEscape(key))
}

// do issues a rate-limited request against a path relative to the API base.
func (s *Store) do(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*http.Response, error) {
	return s.doURL(ctx, method, s.baseURL+path, body, headers)
}

func (s *Store) doURL(ctx context.Context, method, fullURL string, body io.Reader, headers http.Header) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, storeErr(method+" "+fullURL, err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, storeErr(method+" "+fullURL, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		s.logger.Warn().Int("status", resp.StatusCode).Str("url", fullURL).Msg("drivestore: drive throttled or unavailable")
	}

	return resp, nil
}

// statusErr classifies non-success responses the caller did not handle.
// Throttling and server errors map to the retryable store-unavailable class.
func (s *Store) statusErr(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("%s: status %d: %w: %s", op, resp.StatusCode, board.ErrStoreUnavailable, snippet)
	}
	return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, snippet)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, board.ErrStoreUnavailable, err)
}
