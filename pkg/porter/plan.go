package porter

import (
	"fmt"
	"strings"

	"github.com/passkeep/passkeep/pkg/vault"
)

// DuplicateReason explains why an incoming record was held back.
type DuplicateReason string

const (
	// DuplicateIdentity means title and username already exist.
	DuplicateIdentity DuplicateReason = "identity"
	// DuplicateSecret means the password already exists on another record.
	DuplicateSecret DuplicateReason = "secret"
)

// Duplicate pairs a held-back record with the existing record it clashes
// with.
type Duplicate struct {
	Record   vault.Record
	Existing string
	Reason   DuplicateReason
}

// ImportPlan separates incoming records into ones safe to create and
// ones clashing with vault contents.
type ImportPlan struct {
	New        []vault.Record
	Duplicates []Duplicate
}

// PlanImport classifies incoming records against the existing vault
// contents. A record is a duplicate when its title and username pair
// already exists, or when its password matches an existing record's.
// Records accepted earlier in the same batch count as existing, so a
// batch with internal repeats only imports the first occurrence.
func PlanImport(existing, incoming []vault.Record) ImportPlan {
	identities := make(map[string]string, len(existing))
	secrets := make(map[string]string, len(existing))
	for _, rec := range existing {
		identities[identityKey(rec)] = rec.Title
		if key := secretKey(rec); key != "" {
			if _, ok := secrets[key]; !ok {
				secrets[key] = rec.Title
			}
		}
	}

	var plan ImportPlan
	for _, rec := range incoming {
		if title, ok := identities[identityKey(rec)]; ok {
			plan.Duplicates = append(plan.Duplicates, Duplicate{
				Record:   rec,
				Existing: title,
				Reason:   DuplicateIdentity,
			})
			continue
		}
		if key := secretKey(rec); key != "" {
			if title, ok := secrets[key]; ok {
				plan.Duplicates = append(plan.Duplicates, Duplicate{
					Record:   rec,
					Existing: title,
					Reason:   DuplicateSecret,
				})
				continue
			}
			secrets[key] = rec.Title
		}
		identities[identityKey(rec)] = rec.Title
		plan.New = append(plan.New, rec)
	}
	return plan
}

// Summary renders a one-line outcome for logs and CLI output.
func (p ImportPlan) Summary() string {
	return fmt.Sprintf("%d new, %d duplicates", len(p.New), len(p.Duplicates))
}

func identityKey(rec vault.Record) string {
	return strings.ToLower(normalizeValue(rec.Title)) + "\x00" + strings.ToLower(normalizeValue(rec.Username))
}

func secretKey(rec vault.Record) string {
	return normalizeValue(rec.Password)
}
