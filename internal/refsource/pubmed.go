// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/manuscript-engine/internal/httputil"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// NCBI E-utilities endpoints. Declared as vars so tests can substitute an
// httptest server.
var (
	pubmedSearchURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubmedSummaryURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"
)

const pubmedRecordURL = "https://pubmed.ncbi.nlm.nih.gov/%s/"

// PubMed searches and fetches records through the NCBI E-utilities
// esearch and esummary endpoints.
type PubMed struct {
	Client     *http.Client
	UserAgent  string
	Email      string
	APIKey     string
	MaxResults int
	MaxRetries int
	Logger     *zap.Logger
}

// NewPubMed builds a PubMed source from the reference configuration.
func NewPubMed(cfg types.ReferenceConfig, logger *zap.Logger) *PubMed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubMed{
		Client:     &http.Client{Timeout: cfg.Timeout},
		UserAgent:  cfg.UserAgent,
		Email:      cfg.Email,
		APIKey:     cfg.NCBIAPIKey,
		MaxResults: cfg.MaxResults,
		Logger:     logger,
	}
}

// Name returns the source identifier.
func (p *PubMed) Name() string { return "pubmed" }

// Search runs esearch sorted by relevance and resolves the returned PMIDs
// with a single esummary call. Records come back in esearch order.
func (p *PubMed) Search(ctx context.Context, query string) ([]types.ReferenceCandidate, error) {
	maxResults := p.MaxResults
	if maxResults <= 0 {
		maxResults = 30
	}
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmode": {"json"},
		"retmax":  {strconv.Itoa(maxResults)},
		"sort":    {"relevance"},
	}

	var esr esearchResponse
	if err := p.getJSON(ctx, pubmedSearchURL, params, &esr); err != nil {
		return nil, fmt.Errorf("PubMed esearch: %w", err)
	}
	if len(esr.Result.IDList) == 0 {
		return nil, nil
	}

	docs, err := p.summaries(ctx, esr.Result.IDList)
	if err != nil {
		return nil, err
	}
	var out []types.ReferenceCandidate
	for _, id := range esr.Result.IDList {
		if d, ok := docs[id]; ok {
			out = append(out, d.candidate(id))
		}
	}
	return out, nil
}

// Fetch resolves a single PMID. It returns ErrNotFound when esummary has
// no record for it.
func (p *PubMed) Fetch(ctx context.Context, id string) (types.ReferenceCandidate, error) {
	id = strings.TrimSpace(id)
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return types.ReferenceCandidate{}, fmt.Errorf("PMID %q: %w", id, ErrNotFound)
	}
	docs, err := p.summaries(ctx, []string{id})
	if err != nil {
		return types.ReferenceCandidate{}, err
	}
	d, ok := docs[id]
	if !ok {
		return types.ReferenceCandidate{}, fmt.Errorf("PMID %s: %w", id, ErrNotFound)
	}
	return d.candidate(id), nil
}

func (p *PubMed) summaries(ctx context.Context, ids []string) (map[string]esummaryDoc, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}
	var esr esummaryResponse
	if err := p.getJSON(ctx, pubmedSummaryURL, params, &esr); err != nil {
		return nil, fmt.Errorf("PubMed esummary: %w", err)
	}

	docs := make(map[string]esummaryDoc, len(ids))
	for key, raw := range esr.Result {
		if key == "uids" {
			continue
		}
		var d esummaryDoc
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parsing PubMed summary for %s: %w", key, err)
		}
		if d.Error != "" || d.Title == "" {
			p.logger().Debug("pubmed summary without record", zap.String("pmid", key), zap.String("error", d.Error))
			continue
		}
		docs[key] = d
	}
	return docs, nil
}

func (p *PubMed) getJSON(ctx context.Context, endpoint string, params url.Values, v any) error {
	params.Set("tool", "manuscript-engine")
	if p.Email != "" {
		params.Set("email", p.Email)
	}
	if p.APIKey != "" {
		params.Set("api_key", p.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	resp, err := httputil.DoWithRetryLogged(ctx, p.Client, req, p.MaxRetries, p.logger())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// E-utilities JSON structures.
type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type esummaryDoc struct {
	Title       string           `json:"title"`
	Authors     []esummaryAuthor `json:"authors"`
	PubDate     string           `json:"pubdate"`
	Source      string           `json:"source"`
	Volume      string           `json:"volume"`
	Issue       string           `json:"issue"`
	Pages       string           `json:"pages"`
	ELocationID string           `json:"elocationid"`
	PubType     []string         `json:"pubtype"`
	ArticleIDs  []esummaryID     `json:"articleids"`
	Error       string           `json:"error"`
}

type esummaryAuthor struct {
	Name     string `json:"name"`
	AuthType string `json:"authtype"`
}

type esummaryID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}

func (d esummaryDoc) candidate(pmid string) types.ReferenceCandidate {
	c := types.ReferenceCandidate{
		ID:               pmid,
		Title:            strings.TrimSuffix(strings.TrimSpace(d.Title), "."),
		Venue:            d.Source,
		Volume:           d.Volume,
		Issue:            d.Issue,
		Pages:            d.Pages,
		DOI:              d.doi(),
		URL:              fmt.Sprintf(pubmedRecordURL, pmid),
		PublicationTypes: d.PubType,
		Source:           "pubmed",
	}
	for _, a := range d.Authors {
		if a.Name != "" && (a.AuthType == "" || a.AuthType == "Author") {
			c.Authors = append(c.Authors, a.Name)
		}
	}
	if len(d.PubDate) >= 4 {
		if y, err := strconv.Atoi(d.PubDate[:4]); err == nil {
			c.Year = y
		}
	}
	return c
}

func (d esummaryDoc) doi() string {
	for _, id := range d.ArticleIDs {
		if id.IDType == "doi" && id.Value != "" {
			return id.Value
		}
	}
	// elocationid reads like "doi: 10.1000/x pii: S0000".
	fields := strings.Fields(strings.ReplaceAll(d.ELocationID, "doi:", ""))
	if len(fields) > 0 && strings.HasPrefix(fields[0], "10.") {
		return fields[0]
	}
	return ""
}

func (p *PubMed) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
