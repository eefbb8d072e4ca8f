// Package validation checks assets against structural rules and registry
// policies before they are persisted. Errors block registration; warnings
// are surfaced to the caller but never block.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/integrity"
	"github.com/modelpark/registry/pkg/registry"
)

// Validation error codes.
const (
	CodeNameEmpty            = "NAME_EMPTY"
	CodeNameTooLong          = "NAME_TOO_LONG"
	CodeLicenseEmpty         = "LICENSE_EMPTY"
	CodeInvalidContentType   = "INVALID_CONTENT_TYPE"
	CodeTagEmpty             = "TAG_EMPTY"
	CodeTagTooLong           = "TAG_TOO_LONG"
	CodeAnnotationKeyEmpty   = "ANNOTATION_KEY_EMPTY"
	CodeAnnotationKeyTooLong = "ANNOTATION_KEY_TOO_LONG"
	CodeAssetTypeEmpty       = "ASSET_TYPE_EMPTY"
	CodeDependencyNotFound   = "DEPENDENCY_NOT_FOUND"
	CodeSizeExceedsLimit     = "SIZE_EXCEEDS_LIMIT"
)

// Soft and hard thresholds.
const (
	maxDescriptionLen     = 5000
	maxAnnotationValueLen = 10000
	maxDependencies       = 100
	sizeWarnBytes         = 1 << 30  // 1 GiB
	sizeLimitBytes        = 10 << 30 // 10 GiB
)

// Policy names in evaluation order.
const (
	PolicyLicense = "license"
	PolicySize    = "size"
	PolicySchema  = "schema"
)

// PolicyOrder is the fixed order ValidateAllPolicies evaluates in.
var PolicyOrder = []string{PolicyLicense, PolicySize, PolicySchema}

// approvedLicenses are matched as substrings so compound SPDX expressions
// like "MIT OR Apache-2.0" pass.
var approvedLicenses = []string{"MIT", "Apache-2.0", "GPL-3.0", "BSD-3-Clause", "ISC", "CC0-1.0"}

// Error is one blocking validation finding.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Warning is one non-blocking validation finding.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects validation findings. A result is valid exactly when it
// has no errors; warnings never invalidate it.
type Result struct {
	Errors   []Error   `json:"errors,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Valid reports whether the result has no errors.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends a blocking finding.
func (r *Result) AddError(field, message, code string) {
	r.Errors = append(r.Errors, Error{Field: field, Message: message, Code: code})
}

// AddWarning appends a non-blocking finding.
func (r *Result) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, Warning{Field: field, Message: message})
}

// Merge concatenates another result's findings into this one.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Err converts an invalid result into a KindValidationFailed error, or nil
// for a valid one.
func (r *Result) Err() error {
	if r.Valid() {
		return nil
	}
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return registry.ValidationFailed("%s", strings.Join(parts, "; "))
}

// Service validates assets against schema rules and policies.
type Service struct {
	repo   registry.Repository
	events registry.EventStore
	log    *slog.Logger
}

// NewService wires a validation service. A nil logger falls back to
// slog.Default.
func NewService(repo registry.Repository, events registry.EventStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, events: events, log: log}
}

// ValidateSchema checks the structural rules of the asset's metadata and
// type. It needs no repository access.
func (s *Service) ValidateSchema(a *asset.Asset) *Result {
	result := &Result{}
	m := a.Metadata

	if strings.TrimSpace(m.Name) == "" {
		result.AddError("name", "name must not be empty", CodeNameEmpty)
	} else if len(m.Name) > asset.MaxNameLen {
		result.AddError("name", fmt.Sprintf("name exceeds %d characters", asset.MaxNameLen), CodeNameTooLong)
	}

	if err := a.Type.Validate(); err != nil {
		result.AddError("asset_type", err.Error(), CodeAssetTypeEmpty)
	}

	if m.Version != nil {
		if m.Version.Prerelease() != "" {
			result.AddWarning("version", fmt.Sprintf("version %s is a prerelease", m.Version))
		}
		if m.Version.Metadata() != "" {
			result.AddWarning("version", fmt.Sprintf("version %s carries build metadata", m.Version))
		}
	}

	if m.License != "" && strings.TrimSpace(m.License) == "" {
		result.AddError("license", "license must not be blank when set", CodeLicenseEmpty)
	}

	if m.ContentType != "" && !strings.Contains(m.ContentType, "/") {
		result.AddError("content_type",
			fmt.Sprintf("content type %q is not a valid MIME type", m.ContentType), CodeInvalidContentType)
	}

	if len(m.Description) > maxDescriptionLen {
		result.AddWarning("description",
			fmt.Sprintf("description exceeds %d characters", maxDescriptionLen))
	}

	for _, tag := range m.Tags {
		if strings.TrimSpace(tag) == "" {
			result.AddError("tags", "tags must not be empty", CodeTagEmpty)
		} else if len(tag) > asset.MaxTagLen {
			result.AddError("tags",
				fmt.Sprintf("tag %q exceeds %d characters", tag, asset.MaxTagLen), CodeTagTooLong)
		}
	}

	for key, value := range m.Annotations {
		if strings.TrimSpace(key) == "" {
			result.AddError("annotations", "annotation keys must not be empty", CodeAnnotationKeyEmpty)
		} else if len(key) > asset.MaxAnnotationKeyLen {
			result.AddError("annotations",
				fmt.Sprintf("annotation key %q exceeds %d characters", key, asset.MaxAnnotationKeyLen),
				CodeAnnotationKeyTooLong)
		}
		if len(value) > maxAnnotationValueLen {
			result.AddWarning("annotations",
				fmt.Sprintf("annotation %q value exceeds %d characters", key, maxAnnotationValueLen))
		}
	}

	return result
}

// ValidateDependencies resolves each ID dependency against the repository.
// An unresolvable dependency is an error; a repository failure during
// lookup degrades to a warning so a flaky store cannot invalidate an
// otherwise sound asset.
func (s *Service) ValidateDependencies(ctx context.Context, a *asset.Asset) *Result {
	result := &Result{}

	if len(a.Dependencies) > maxDependencies {
		result.AddWarning("dependencies",
			fmt.Sprintf("asset declares %d dependencies, more than %d", len(a.Dependencies), maxDependencies))
	}

	for _, ref := range a.Dependencies {
		depID, ok := ref.ByID()
		if !ok {
			continue
		}
		_, err := s.repo.FindByID(ctx, depID)
		switch {
		case err == nil:
		case registry.IsKind(err, registry.KindNotFound):
			result.AddError("dependencies",
				fmt.Sprintf("dependency %s not found", depID), CodeDependencyNotFound)
		default:
			result.AddWarning("dependencies",
				fmt.Sprintf("could not resolve dependency %s: %v", depID, err))
		}
	}
	return result
}

// ValidatePolicy evaluates one named policy and records the outcome as a
// PolicyValidated event. Unknown policy names are an InvalidInput error.
func (s *Service) ValidatePolicy(ctx context.Context, a *asset.Asset, name string) (*Result, error) {
	var result *Result
	switch name {
	case PolicyLicense:
		result = s.licensePolicy(a)
	case PolicySize:
		result = s.sizePolicy(a)
	case PolicySchema:
		result = s.ValidateSchema(a)
	default:
		return nil, registry.InvalidInput("unknown policy %q", name)
	}

	message := ""
	if !result.Valid() {
		message = result.Errors[0].Message
	} else if len(result.Warnings) > 0 {
		message = result.Warnings[0].Message
	}
	ev := asset.NewEvent(asset.PolicyValidated{
		AssetID:    a.ID,
		PolicyName: name,
		Passed:     result.Valid(),
		Message:    message,
	}).WithSource("validation")
	if err := s.events.Append(ctx, ev); err != nil {
		s.log.Error("append policy event", "policy", name, "error", err)
	}

	return result, nil
}

// ValidateAllPolicies evaluates every policy in the fixed order and merges
// the findings.
func (s *Service) ValidateAllPolicies(ctx context.Context, a *asset.Asset) (*Result, error) {
	merged := &Result{}
	for _, name := range PolicyOrder {
		result, err := s.ValidatePolicy(ctx, a, name)
		if err != nil {
			return nil, err
		}
		merged.Merge(result)
	}
	return merged, nil
}

// Request selects what ValidateAsset checks beyond the schema rules.
type Request struct {
	// Deep also resolves dependencies against the repository.
	Deep bool
	// Policies names the policies to run; empty means all of them.
	Policies []string
}

// ValidateAsset runs schema validation, optional dependency resolution, and
// the requested policies, merging all findings.
func (s *Service) ValidateAsset(ctx context.Context, a *asset.Asset, req Request) (*Result, error) {
	merged := s.ValidateSchema(a)

	if req.Deep {
		merged.Merge(s.ValidateDependencies(ctx, a))
	}

	policies := req.Policies
	if len(policies) == 0 {
		policies = PolicyOrder
	}
	for _, name := range policies {
		// Schema already ran once above.
		if name == PolicySchema && len(req.Policies) == 0 {
			continue
		}
		result, err := s.ValidatePolicy(ctx, a, name)
		if err != nil {
			return nil, err
		}
		merged.Merge(result)
	}
	return merged, nil
}

// licensePolicy warns when the license is missing or not on the approved
// list. Licensing findings never block registration.
func (s *Service) licensePolicy(a *asset.Asset) *Result {
	result := &Result{}
	license := a.Metadata.License
	if license == "" {
		result.AddWarning("license", "no license declared")
		return result
	}
	for _, approved := range approvedLicenses {
		if strings.Contains(license, approved) {
			return result
		}
	}
	result.AddWarning("license", fmt.Sprintf("license %q is not on the approved list", license))
	return result
}

// sizePolicy rejects assets above the hard size limit and warns above the
// soft one. Assets without a recorded size pass.
func (s *Service) sizePolicy(a *asset.Asset) *Result {
	result := &Result{}
	if a.Metadata.SizeBytes == nil {
		return result
	}
	size := *a.Metadata.SizeBytes
	switch {
	case size > sizeLimitBytes:
		result.AddError("size_bytes",
			fmt.Sprintf("asset size %s exceeds the %s limit",
				integrity.FormatSize(size), integrity.FormatSize(sizeLimitBytes)),
			CodeSizeExceedsLimit)
	case size > sizeWarnBytes:
		result.AddWarning("size_bytes",
			fmt.Sprintf("asset size %s exceeds %s", integrity.FormatSize(size), integrity.FormatSize(sizeWarnBytes)))
	}
	return result
}
