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
	"unicode"

	"go.uber.org/zap"

	"github.com/pdiddy/manuscript-engine/internal/httputil"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// openAlexWorksBase is the OpenAlex Works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexWorksBase = "https://api.openalex.org/works"

// OpenAlex searches the OpenAlex Works API. Only works carrying a PMID
// are returned, since the PMID is the citation key.
type OpenAlex struct {
	Client     *http.Client
	UserAgent  string
	// Email is sent as mailto parameter for polite pool access.
	Email      string
	MaxResults int
	MaxRetries int
	Logger     *zap.Logger
}

// NewOpenAlex builds an OpenAlex source from the reference configuration.
func NewOpenAlex(cfg types.ReferenceConfig, logger *zap.Logger) *OpenAlex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAlex{
		Client:     &http.Client{Timeout: cfg.Timeout},
		UserAgent:  cfg.UserAgent,
		Email:      cfg.Email,
		MaxResults: cfg.MaxResults,
		Logger:     logger,
	}
}

// Name returns the source identifier.
func (o *OpenAlex) Name() string { return "openalex" }

// Search queries OpenAlex restricted to works with a PMID.
func (o *OpenAlex) Search(ctx context.Context, query string) ([]types.ReferenceCandidate, error) {
	maxResults := o.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	if maxResults > 200 {
		maxResults = 200
	}
	params := url.Values{
		"search":   {query},
		"filter":   {"has_pmid:true"},
		"per_page": {strconv.Itoa(maxResults)},
		"page":     {"1"},
	}

	var oar openAlexResponse
	if err := o.getJSON(ctx, openAlexWorksBase, params, &oar); err != nil {
		return nil, err
	}
	var out []types.ReferenceCandidate
	for _, work := range oar.Results {
		if c, ok := work.candidate(); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Fetch resolves a single PMID through the works/pmid:<id> lookup.
func (o *OpenAlex) Fetch(ctx context.Context, id string) (types.ReferenceCandidate, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.ReferenceCandidate{}, fmt.Errorf("empty PMID: %w", ErrNotFound)
	}
	var work openAlexWork
	if err := o.getJSON(ctx, openAlexWorksBase+"/pmid:"+url.PathEscape(id), url.Values{}, &work); err != nil {
		return types.ReferenceCandidate{}, err
	}
	c, ok := work.candidate()
	if !ok {
		return types.ReferenceCandidate{}, fmt.Errorf("PMID %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (o *OpenAlex) getJSON(ctx context.Context, endpoint string, params url.Values, v any) error {
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}
	reqURL := endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if o.UserAgent != "" {
		req.Header.Set("User-Agent", o.UserAgent)
	}

	resp, err := httputil.DoWithRetryLogged(ctx, o.Client, req, o.MaxRetries, o.logger())
	if err != nil {
		return fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	return nil
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	DOI             string               `json:"doi"`
	PublicationYear int                  `json:"publication_year"`
	Type            string               `json:"type"`
	IDs             openAlexIDs          `json:"ids"`
	Authorships     []openAlexAuthorship `json:"authorships"`
	Biblio          openAlexBiblio       `json:"biblio"`
	PrimaryLocation struct {
		Source struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
}

type openAlexIDs struct {
	PMID string `json:"pmid"`
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type openAlexBiblio struct {
	Volume    string `json:"volume"`
	Issue     string `json:"issue"`
	FirstPage string `json:"first_page"`
	LastPage  string `json:"last_page"`
}

func (w openAlexWork) candidate() (types.ReferenceCandidate, bool) {
	pmid := strings.TrimRight(w.IDs.PMID, "/")
	if i := strings.LastIndex(pmid, "/"); i >= 0 {
		pmid = pmid[i+1:]
	}
	if pmid == "" || w.Title == "" {
		return types.ReferenceCandidate{}, false
	}

	c := types.ReferenceCandidate{
		ID:     pmid,
		Title:  strings.TrimSuffix(strings.TrimSpace(w.Title), "."),
		Year:   w.PublicationYear,
		Venue:  w.PrimaryLocation.Source.DisplayName,
		DOI:    strings.TrimPrefix(w.DOI, "https://doi.org/"),
		Volume: w.Biblio.Volume,
		Issue:  w.Biblio.Issue,
		Pages:  pageRange(w.Biblio.FirstPage, w.Biblio.LastPage),
		URL:    fmt.Sprintf(pubmedRecordURL, pmid),
		Source: "openalex",
	}
	if w.Type != "" {
		c.PublicationTypes = []string{w.Type}
	}
	for _, a := range w.Authorships {
		if n := medlineName(a.Author.DisplayName); n != "" {
			c.Authors = append(c.Authors, n)
		}
	}
	return c, true
}

func pageRange(first, last string) string {
	switch {
	case first == "":
		return ""
	case last == "" || last == first:
		return first
	default:
		return first + "-" + last
	}
}

// medlineName converts "Jane A. Smith" to the MEDLINE form "Smith JA" so
// OpenAlex authors render like PubMed ones.
func medlineName(display string) string {
	parts := strings.Fields(display)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	family := parts[len(parts)-1]
	var initials strings.Builder
	for _, given := range parts[:len(parts)-1] {
		for _, piece := range strings.Split(given, "-") {
			for _, r := range piece {
				if unicode.IsLetter(r) {
					initials.WriteRune(unicode.ToUpper(r))
					break
				}
			}
		}
	}
	if initials.Len() == 0 {
		return family
	}
	return family + " " + initials.String()
}

func (o *OpenAlex) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
