package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultAlias is used when a reference carries no version
const DefaultAlias = "latest"

var versionRegex = regexp.MustCompile(`^v(\d+)$`)

// ArtifactState tracks whether an artifact has been published
type ArtifactState string

const (
	ArtifactPending   ArtifactState = "PENDING"
	ArtifactCommitted ArtifactState = "COMMITTED"
)

// ArtifactRef identifies an artifact version, e.g. "sample.csv:latest" or "sample.csv:v3"
type ArtifactRef struct {
	Path    string // optional "entity/project/" prefix, kept for display only
	Name    string
	Version string
}

// ParseArtifactRef parses "[path/]name[:version]"
func ParseArtifactRef(s string) (ArtifactRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ArtifactRef{}, fmt.Errorf("empty artifact reference")
	}

	var ref ArtifactRef
	if i := strings.LastIndex(s, "/"); i != -1 {
		ref.Path = s[:i]
		s = s[i+1:]
	}

	ref.Name, ref.Version = s, DefaultAlias
	if i := strings.LastIndex(s, ":"); i != -1 {
		ref.Name, ref.Version = s[:i], s[i+1:]
	}
	if ref.Name == "" {
		return ArtifactRef{}, fmt.Errorf("artifact reference %q has no name", s)
	}
	if ref.Version == "" {
		return ArtifactRef{}, fmt.Errorf("artifact reference %q has an empty version", s)
	}
	return ref, nil
}

// ValidateArtifactName checks that name can serve both as an artifact name in a
// reference and as a single file name
func ValidateArtifactName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("artifact name is required")
	case name == "." || name == "..":
		return fmt.Errorf("invalid artifact name %q", name)
	case strings.ContainsAny(name, `/\:`):
		return fmt.Errorf("artifact name %q must not contain '/', '\\' or ':'", name)
	}
	return nil
}

// VersionNumber returns N for a "vN" version, or false for an alias
func (r ArtifactRef) VersionNumber() (int, bool) {
	m := versionRegex.FindStringSubmatch(r.Version)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r ArtifactRef) String() string {
	if r.Path != "" {
		return r.Path + "/" + r.Name + ":" + r.Version
	}
	return r.Name + ":" + r.Version
}

// Artifact is a named, versioned file registered in the artifact store
type Artifact struct {
	Name        string
	Type        string
	Description string
	Version     int
	Aliases     []string
	FileName    string
	Digest      string // hex sha256 of the file
	Size        int64
	Key         string // backend object key
	URI         string
	Metadata    map[string]any
	State       ArtifactState
	CreatedAt   time.Time

	// LocalPath is the file on disk; set by Create and Resolve, never persisted
	LocalPath string
}

// VersionLabel returns "vN"
func (a *Artifact) VersionLabel() string {
	return "v" + strconv.Itoa(a.Version)
}

// Ref returns the versioned reference of a published artifact
func (a *Artifact) Ref() ArtifactRef {
	return ArtifactRef{Name: a.Name, Version: a.VersionLabel()}
}
