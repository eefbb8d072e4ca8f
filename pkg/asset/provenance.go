package asset

import (
	"fmt"
	"strings"
	"time"
)

// Provenance records where an asset came from: source repository, commit,
// build, and author. All fields are optional so provenance can accumulate
// over time.
type Provenance struct {
	SourceRepo    string            `json:"source_repo,omitempty"`
	CommitHash    string            `json:"commit_hash,omitempty"`
	BuildID       string            `json:"build_id,omitempty"`
	Author        string            `json:"author,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	BuildMetadata map[string]string `json:"build_metadata,omitempty"`
}

// NewProvenance creates an empty provenance record stamped with the current
// time.
func NewProvenance() Provenance {
	return Provenance{CreatedAt: time.Now().UTC()}
}

var repoPrefixes = []string{"http://", "https://", "git@", "ssh://"}

// Validate checks the format of the optional fields.
func (p Provenance) Validate() error {
	if p.SourceRepo != "" {
		valid := false
		for _, prefix := range repoPrefixes {
			if strings.HasPrefix(p.SourceRepo, prefix) {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("source repo %q must start with http://, https://, git@, or ssh://", p.SourceRepo)
		}
	}
	if p.CommitHash != "" {
		if len(p.CommitHash) != 40 && len(p.CommitHash) != 64 {
			return fmt.Errorf("commit hash must be 40 or 64 hex characters, got %d", len(p.CommitHash))
		}
		for _, c := range strings.ToLower(p.CommitHash) {
			if !isHexDigit(c) {
				return fmt.Errorf("commit hash contains non-hex character %q", c)
			}
		}
	}
	if p.Author != "" && strings.TrimSpace(p.Author) == "" {
		return fmt.Errorf("author must not be blank when set")
	}
	return nil
}

// IsComplete reports whether both the source repository and the commit hash
// are recorded.
func (p Provenance) IsComplete() bool {
	return p.SourceRepo != "" && p.CommitHash != ""
}

// Clone returns a deep copy of the provenance record.
func (p Provenance) Clone() Provenance {
	out := p
	if p.BuildMetadata != nil {
		out.BuildMetadata = make(map[string]string, len(p.BuildMetadata))
		for k, v := range p.BuildMetadata {
			out.BuildMetadata[k] = v
		}
	}
	return out
}

// ProvenanceBuilder assembles a Provenance record. Build validates the
// result.
type ProvenanceBuilder struct {
	p Provenance
}

// NewProvenanceBuilder starts a builder stamped with the current time.
func NewProvenanceBuilder() *ProvenanceBuilder {
	return &ProvenanceBuilder{p: NewProvenance()}
}

// SourceRepo sets the source repository URL.
func (b *ProvenanceBuilder) SourceRepo(repo string) *ProvenanceBuilder {
	b.p.SourceRepo = repo
	return b
}

// CommitHash sets the source commit hash.
func (b *ProvenanceBuilder) CommitHash(hash string) *ProvenanceBuilder {
	b.p.CommitHash = hash
	return b
}

// BuildID sets the CI build identifier.
func (b *ProvenanceBuilder) BuildID(id string) *ProvenanceBuilder {
	b.p.BuildID = id
	return b
}

// Author sets the author.
func (b *ProvenanceBuilder) Author(author string) *ProvenanceBuilder {
	b.p.Author = author
	return b
}

// BuildMetadata sets a build metadata entry.
func (b *ProvenanceBuilder) BuildMetadata(key, value string) *ProvenanceBuilder {
	if b.p.BuildMetadata == nil {
		b.p.BuildMetadata = make(map[string]string)
	}
	b.p.BuildMetadata[key] = value
	return b
}

// Build validates and returns the provenance record.
func (b *ProvenanceBuilder) Build() (Provenance, error) {
	if err := b.p.Validate(); err != nil {
		return Provenance{}, err
	}
	return b.p.Clone(), nil
}
