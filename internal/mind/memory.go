package mind

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// fingerprintPrefix is how many runes of content take part in a fingerprint.
const fingerprintPrefix = 100

// Fingerprint identifies a piece of content by author and opening text.
type Fingerprint uint64

// NewFingerprint hashes the lowercased author and the normalised first
// runes of content. Case, Unicode form and whitespace runs do not matter.
func NewFingerprint(author, content string) Fingerprint {
	c := norm.NFKC.String(content)
	c = strings.Join(strings.Fields(strings.ToLower(c)), " ")
	if r := []rune(c); len(r) > fingerprintPrefix {
		c = string(r[:fingerprintPrefix])
	}

	d := xxhash.New()
	_, _ = d.WriteString(strings.ToLower(strings.TrimPrefix(author, "@")))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(c)
	return Fingerprint(d.Sum64())
}

const (
	defaultMemoryMax    = 1000
	defaultMemoryTrimTo = 500
)

// EngagementMemory remembers what the agent already engaged with. It is an
// insertion-ordered set, compacted to its newest entries when it grows past
// MaxSize. Owned by one goroutine.
type EngagementMemory struct {
	maxSize int
	trimTo  int
	order   []Fingerprint
	set     map[Fingerprint]struct{}
}

// NewEngagementMemory uses the defaults (1000, trimmed to 500) for
// non-positive bounds.
func NewEngagementMemory(maxSize, trimTo int) *EngagementMemory {
	if maxSize <= 0 {
		maxSize = defaultMemoryMax
	}
	if trimTo <= 0 || trimTo > maxSize {
		trimTo = min(defaultMemoryTrimTo, maxSize)
	}
	return &EngagementMemory{
		maxSize: maxSize,
		trimTo:  trimTo,
		set:     make(map[Fingerprint]struct{}),
	}
}

func (m *EngagementMemory) Has(fp Fingerprint) bool {
	_, ok := m.set[fp]
	return ok
}

// Record adds fp. Recording a known fingerprint keeps its original position.
func (m *EngagementMemory) Record(fp Fingerprint) {
	if m.Has(fp) {
		return
	}
	m.set[fp] = struct{}{}
	m.order = append(m.order, fp)
}

// Compact keeps the newest trimTo entries once the size exceeds maxSize.
// It reports whether anything was dropped.
func (m *EngagementMemory) Compact() bool {
	if len(m.order) <= m.maxSize {
		return false
	}
	drop := len(m.order) - m.trimTo
	for _, fp := range m.order[:drop] {
		delete(m.set, fp)
	}
	m.order = append([]Fingerprint(nil), m.order[drop:]...)
	return true
}

func (m *EngagementMemory) Len() int { return len(m.order) }
