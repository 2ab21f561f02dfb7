// Package key implements content-addressed node identity: NodeKey, its
// canonical hashing, and its canonical string codec.
package key

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AnalyticType is a closed, validated tag naming a registered analytic.
// Unknown variants reaching Resolve are a structural error.
type AnalyticType string

const (
	DataProvider AnalyticType = "DataProvider"
	Lag          AnalyticType = "Lag"
	Returns      AnalyticType = "Returns"
	Volatility   AnalyticType = "Volatility"
	Ema          AnalyticType = "Ema"
	Merge        AnalyticType = "Merge"
	WeightedSum  AnalyticType = "WeightedSum"
)

// WindowKind distinguishes the two supported window shapes.
type WindowKind string

const (
	Fixed       WindowKind = "fixed"
	Exponential WindowKind = "exponential"
)

// WindowSpec describes the burn-in/buffering shape attached to a node.
type WindowSpec struct {
	Kind   WindowKind
	Size   uint32  // meaningful iff Kind == Fixed
	Lambda float64 // meaningful iff Kind == Exponential
}

// DateRange is a half-open range [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the range contains no instants.
func (r DateRange) Empty() bool {
	return !r.Start.Before(r.End)
}

// NodeKey is the value-typed, hashable identity of a graph node.
//
// Two keys are equal iff every field is equal componentwise. Params is
// canonicalised by sorted-key iteration whenever the key is hashed or
// serialised, so map iteration order never affects identity.
type NodeKey struct {
	Analytic    AnalyticType
	Assets      []string
	Range       *DateRange
	Window      *WindowSpec
	Params      map[string]string
	OverrideTag string
}

// sortedParamKeys returns Params' keys in lexicographic order.
func (k NodeKey) sortedParamKeys() []string {
	keys := make([]string, 0, len(k.Params))
	for p := range k.Params {
		keys = append(keys, p)
	}
	sort.Strings(keys)
	return keys
}

// Hash returns a 64-bit content hash of the key, suitable for map bucketing.
// It is not guaranteed stable across builds; use Canonical for persistence.
func (k NodeKey) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(Canonical(k)))
	return h.Sum64()
}

// Equal reports whether two keys are componentwise equal.
func (k NodeKey) Equal(other NodeKey) bool {
	return Canonical(k) == Canonical(other)
}

// Canonical renders a NodeKey to its canonical string form:
//
//	<analytic>|<asset1,asset2,...>|[start,end)|window=...|params:k1=v1,k2=v2,...|override=...
//
// Fields are omitted if absent. Parameter keys are sorted. Floating-point
// values (window lambda) are rendered via strconv with full round-trip
// precision so the form is reversible.
func Canonical(k NodeKey) string {
	var b strings.Builder

	b.WriteString(string(k.Analytic))
	b.WriteByte('|')
	b.WriteString(strings.Join(k.Assets, ","))
	b.WriteByte('|')

	if k.Range != nil {
		b.WriteByte('[')
		b.WriteString(k.Range.Start.UTC().Format(time.RFC3339))
		b.WriteByte(',')
		b.WriteString(k.Range.End.UTC().Format(time.RFC3339))
		b.WriteByte(')')
	}
	b.WriteByte('|')

	if k.Window != nil {
		b.WriteString("window=")
		switch k.Window.Kind {
		case Fixed:
			b.WriteString("fixed:")
			b.WriteString(strconv.FormatUint(uint64(k.Window.Size), 10))
		case Exponential:
			b.WriteString("exp:")
			b.WriteString(formatFloatBits(k.Window.Lambda))
		}
	}
	b.WriteByte('|')

	if len(k.Params) > 0 {
		b.WriteString("params:")
		sortedKeys := k.sortedParamKeys()
		for i, pk := range sortedKeys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(pk)
			b.WriteByte('=')
			b.WriteString(k.Params[pk])
		}
	}
	b.WriteByte('|')

	if k.OverrideTag != "" {
		b.WriteString("override=")
		b.WriteString(k.OverrideTag)
	}

	return b.String()
}

// formatFloatBits renders a float64 via its exact decimal representation so
// that NaN/-0 never alias distinct keys together (see Parse's counterpart).
func formatFloatBits(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Parse reverses Canonical. It returns an error if s is not a well-formed
// canonical key string.
func Parse(s string) (NodeKey, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 6 {
		return NodeKey{}, fmt.Errorf("key: malformed canonical string: %q", s)
	}

	analytic, assetsPart, rangePart, windowPart, paramsPart, overridePart := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]

	k := NodeKey{Analytic: AnalyticType(analytic)}

	if assetsPart != "" {
		k.Assets = strings.Split(assetsPart, ",")
	}

	if rangePart != "" {
		trimmed := strings.TrimSuffix(strings.TrimPrefix(rangePart, "["), ")")
		bounds := strings.SplitN(trimmed, ",", 2)
		if len(bounds) != 2 {
			return NodeKey{}, fmt.Errorf("key: malformed range in %q", s)
		}
		start, err := time.Parse(time.RFC3339, bounds[0])
		if err != nil {
			return NodeKey{}, fmt.Errorf("key: malformed range start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, bounds[1])
		if err != nil {
			return NodeKey{}, fmt.Errorf("key: malformed range end: %w", err)
		}
		k.Range = &DateRange{Start: start, End: end}
	}

	if windowPart != "" {
		raw := strings.TrimPrefix(windowPart, "window=")
		switch {
		case strings.HasPrefix(raw, "fixed:"):
			size, err := strconv.ParseUint(strings.TrimPrefix(raw, "fixed:"), 10, 32)
			if err != nil {
				return NodeKey{}, fmt.Errorf("key: malformed fixed window: %w", err)
			}
			k.Window = &WindowSpec{Kind: Fixed, Size: uint32(size)}
		case strings.HasPrefix(raw, "exp:"):
			lambda, err := strconv.ParseFloat(strings.TrimPrefix(raw, "exp:"), 64)
			if err != nil {
				return NodeKey{}, fmt.Errorf("key: malformed exponential window: %w", err)
			}
			k.Window = &WindowSpec{Kind: Exponential, Lambda: lambda}
		default:
			return NodeKey{}, fmt.Errorf("key: unknown window form %q", raw)
		}
	}

	if paramsPart != "" {
		raw := strings.TrimPrefix(paramsPart, "params:")
		k.Params = make(map[string]string)
		for _, pair := range strings.Split(raw, ",") {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 {
				return NodeKey{}, fmt.Errorf("key: malformed param pair %q", pair)
			}
			k.Params[kv[0]] = kv[1]
		}
	}

	if overridePart != "" {
		k.OverrideTag = strings.TrimPrefix(overridePart, "override=")
	}

	return k, nil
}

// BitsOf returns the IEEE-754 bit pattern of f. Embedding a window lambda's
// bits rather than its float value avoids NaN/-0 aliasing bugs in any map
// keyed directly on NodeKey fields (Canonical already avoids this via its
// exact decimal rendering; BitsOf exists for callers that need a raw
// comparable key, e.g. an in-process intern cache).
func BitsOf(f float64) uint64 {
	return math.Float64bits(f)
}
