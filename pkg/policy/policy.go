// Package policy loads boundary documents from versioned sources and keeps
// the active boundary set current. Two sources are supported: a local YAML
// file watched through fsnotify, and a git repository polled through go-git.
// Each source exposes the version identity of the active document so
// decisions can be traced back to the exact boundary set they were made
// under.
package policy

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
)

// Document is the on-disk shape of a boundary policy.
type Document struct {
	// Version is an operator-chosen label for file-based policies. Git
	// sources override it with the commit SHA.
	Version    string              `yaml:"version"`
	Boundaries boundary.Boundaries `yaml:"boundaries"`
}

// VersionInfo identifies the active policy version.
type VersionInfo struct {
	// ID is the policy identity stamped into decisions: the document's
	// version label for file sources, the commit SHA for git sources.
	ID         string    `json:"id"`
	CommitSHA  string    `json:"commit_sha,omitempty"`
	CommitTime time.Time `json:"commit_time,omitempty"`
	Branch     string    `json:"branch,omitempty"`
	Author     string    `json:"author,omitempty"`
	Message    string    `json:"message,omitempty"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// ParseDocument decodes a boundary policy document. Unknown fields are
// rejected so a typoed limit name cannot silently disable a boundary.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse policy document: %w", err)
	}
	return &doc, nil
}
