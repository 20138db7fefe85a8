// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ReferenceCandidate is a bibliographic record returned by a reference
// source. ID is the PubMed identifier used in {cite:PMID:<id>} placeholders.
type ReferenceCandidate struct {
	ID      string   `json:"id" yaml:"id" validate:"required"`
	Title   string   `json:"title" yaml:"title"`
	Authors []string `json:"authors" yaml:"authors"`
	Year    int      `json:"year,omitempty" yaml:"year,omitempty"`

	// Venue is the journal abbreviation (or full name if no abbreviation).
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	DOI    string `json:"doi,omitempty" yaml:"doi,omitempty"`
	Volume string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue  string `json:"issue,omitempty" yaml:"issue,omitempty"`
	Pages  string `json:"pages,omitempty" yaml:"pages,omitempty"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`

	// PublicationTypes lists e.g. "Randomized Controlled Trial", "Review".
	PublicationTypes []string `json:"publication_types,omitempty" yaml:"publication_types,omitempty"`

	// Source names the backend that produced the record (pubmed, openalex, file).
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Known reports whether the candidate refers to a real record. Registry
// lookups return the zero value for identifiers they do not hold.
func (r ReferenceCandidate) Known() bool {
	return r.ID != ""
}

// CandidatesFile is the on-disk list of candidates (refs add).
type CandidatesFile struct {
	References []ReferenceCandidate `json:"references" yaml:"references" validate:"dive"`
}
