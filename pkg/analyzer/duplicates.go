package analyzer

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/passkeep/passkeep/pkg/vault"
)

// DuplicateGroup is a set of records sharing one password.
type DuplicateGroup struct {
	// Titles lists the records reusing the password.
	Titles []string `json:"titles"`
	// Count is the number of records in the group.
	Count int `json:"count"`
}

// FindDuplicates groups records that share a password.
//
// Passwords are compared through HMAC-SHA256 with a key generated for
// this calculator only, so raw secrets are never kept in the grouping
// map and the comparison keys are useless outside the session. Values
// are trimmed and NFC-normalized before hashing so visually identical
// passwords collide. Groups are sorted most-duplicated first.
func (c *Calculator) FindDuplicates(records []vault.Record) ([]DuplicateGroup, error) {
	if c.hmacKey == nil {
		c.hmacKey = make([]byte, 32)
		if _, err := rand.Read(c.hmacKey); err != nil {
			return nil, err
		}
	}

	byHash := make(map[string][]string)
	for _, rec := range records {
		value := norm.NFC.String(strings.TrimSpace(rec.Password))
		if value == "" {
			continue
		}
		mac := hmac.New(sha256.New, c.hmacKey)
		mac.Write([]byte(value))
		digest := hex.EncodeToString(mac.Sum(nil))
		byHash[digest] = append(byHash[digest], rec.Title)
	}

	var groups []DuplicateGroup
	for _, titles := range byHash {
		if len(titles) < 2 {
			continue
		}
		sort.Strings(titles)
		groups = append(groups, DuplicateGroup{Titles: titles, Count: len(titles)})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Titles[0] < groups[j].Titles[0]
	})
	return groups, nil
}
