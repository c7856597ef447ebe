// Package seed installs the built-in system catalog into the state
// database. The catalog ships as YAML embedded in the binary.
package seed

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/chaostheorist/chaos/internal/domain"
)

//go:embed catalog.yaml
var builtin []byte

// digestKey is the meta key holding the digest of the installed seed.
const digestKey = "seed_digest"

// Document is a decoded seed catalog.
type Document struct {
	Systems        []domain.ChaoticSystemDefinition  `json:"systems"`
	LeveragePoints map[string][]domain.LeveragePoint `json:"leveragePoints"`
}

// Target receives the seed. *sqlite.DB satisfies it.
type Target interface {
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	UpsertSystem(ctx context.Context, sys domain.ChaoticSystemDefinition) error
	ReplaceLeveragePoints(ctx context.Context, systemID string, points []domain.LeveragePoint) error
}

// Builtin returns the embedded seed catalog.
func Builtin() []byte { return builtin }

// Decode parses a YAML seed. The YAML tree is re-encoded as JSON so the
// domain types decode with their JSON rules (tagged values, timestamps).
// Every system is validated and gets its content hash computed.
func Decode(data []byte) (Document, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return Document{}, fmt.Errorf("parse seed yaml: %w", err)
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return Document{}, fmt.Errorf("re-encode seed: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode seed: %w", err)
	}

	for i := range doc.Systems {
		sys := &doc.Systems[i]
		domain.Normalize(sys)
		if err := domain.ValidateSystem(*sys); err != nil {
			return Document{}, fmt.Errorf("seed system %q: %w", sys.ID, err)
		}
		sys.ContentHash = domain.ComputeContentHash(*sys)
	}
	for systemID := range doc.LeveragePoints {
		if !hasSystem(doc.Systems, systemID) {
			return Document{}, fmt.Errorf("seed leverage points reference unknown system %q", systemID)
		}
	}
	return doc, nil
}

// Install writes the seed into t unless a seed with the same digest is
// already installed. It reports whether anything was written.
func Install(ctx context.Context, t Target, data []byte, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	installed, err := t.GetMeta(ctx, digestKey)
	if err != nil {
		return false, fmt.Errorf("read seed digest: %w", err)
	}
	if installed == digest {
		logger.Debug("seed catalog up to date", "digest", digest[:12])
		return false, nil
	}

	doc, err := Decode(data)
	if err != nil {
		return false, err
	}
	for _, sys := range doc.Systems {
		if err := t.UpsertSystem(ctx, sys); err != nil {
			return false, fmt.Errorf("install system %s: %w", sys.ID, err)
		}
		if err := t.ReplaceLeveragePoints(ctx, sys.ID, doc.LeveragePoints[sys.ID]); err != nil {
			return false, fmt.Errorf("install leverage points for %s: %w", sys.ID, err)
		}
	}
	if err := t.SetMeta(ctx, digestKey, digest); err != nil {
		return false, fmt.Errorf("record seed digest: %w", err)
	}
	logger.Info("seed catalog installed", "systems", len(doc.Systems), "digest", digest[:12])
	return true, nil
}

func hasSystem(systems []domain.ChaoticSystemDefinition, id string) bool {
	for _, s := range systems {
		if s.ID == id {
			return true
		}
	}
	return false
}
