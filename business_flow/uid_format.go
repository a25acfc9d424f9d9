package businessflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/utils"
)

var (
	prefixWordPattern = regexp.MustCompile(`[A-Z0-9]+`)
	prefixPattern     = regexp.MustCompile(`^[A-Z0-9]{2,12}$`)
	slugBreakPattern  = regexp.MustCompile(`[^a-z0-9]+`)
)

// DerivePrefix builds the identifier prefix of a company name: the initials of its first
// three words, or its first three characters when that yields fewer than two letters.
//
//	"Lamba Property Limited" -> "LPL"
//	"Acme"                   -> "ACM"
//	""                       -> "CMP"
func DerivePrefix(name string) string {
	words := prefixWordPattern.FindAllString(strings.ToUpper(name), -1)
	if len(words) == 0 {
		return utils.DefaultCompanyPrefix
	}

	var initials strings.Builder
	for i, w := range words {
		if i == 3 {
			break
		}
		initials.WriteByte(w[0])
	}
	if initials.Len() >= 2 {
		return initials.String()
	}

	compact := strings.Join(words, "")
	if len(compact) >= 3 {
		return compact[:3]
	}
	return compact + strings.Repeat("X", 3-len(compact))
}

// CompanyPrefix returns the stored prefix of c, deriving one from the name for legacy rows
func CompanyPrefix(c *models.Company) string {
	if p := c.Prefix(); p != "" {
		return p
	}
	return DerivePrefix(c.Name)
}

// DisambiguatedPrefix is used when the derived prefix is already held by another company
func DisambiguatedPrefix(prefix string, companyID uint) string {
	return prefix + strconv.FormatUint(uint64(companyID), 10)
}

// NormalizePrefix validates a pre-configured prefix
func NormalizePrefix(raw string) (string, error) {
	p := strings.ToUpper(strings.TrimSpace(raw))
	if !prefixPattern.MatchString(p) {
		return "", ErrPrefixInvalid
	}
	return p, nil
}

// FormatUID renders PREFIX-TAG followed by seq zero padded to three digits. Wider numbers keep all their digits.
func FormatUID(prefix string, kind models.CounterKind, seq int64) (string, error) {
	tag, ok := kind.Tag()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCounterKind, kind)
	}
	return fmt.Sprintf("%s-%s%0*d", prefix, tag, utils.SequenceNumberWidth, seq), nil
}

// Slugify lowercases name and joins its alphanumeric runs with dashes
func Slugify(name string) string {
	slug := strings.Trim(slugBreakPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "company"
	}
	return slug
}

// UniqueSlug returns base, or base-N with the smallest N >= 1 not present in taken
func UniqueSlug(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		used[s] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}
