package models

import "strings"

// Classification markers embedded by the audit engine in the free-text
// "analise" field. Matching is by substring containment, accents included:
// the markers must be reproduced bit-for-bit or classification silently
// fails. Categories are not mutually exclusive.
const (
	MarkerOK          = "OK"
	MarkerCorrigido   = "Corrigido"
	MarkerDivergencia = "Divergência"
	MarkerRemovido    = "Removido"
	MarkerGrave       = "INCONSISTÊNCIA GRAVE"
	MarkerRescisao    = "Rescisão"
)

// ClassSet is the set of classifications a record's analysis text matched.
// A record can carry several flags at once.
type ClassSet struct {
	Ok            bool
	Corrigido     bool
	Divergencia   bool
	Removido      bool
	Grave         bool
	Uncategorized bool
}

// Classify computes the classification set from an analysis string using
// case-sensitive marker containment. This is the rule the summary
// aggregation uses. Both "INCONSISTÊNCIA GRAVE" and "Rescisão" count as
// grave. Text matching no marker is uncategorized and participates in no
// category count except the record total.
func Classify(analise string) ClassSet {
	cs := ClassSet{
		Ok:          strings.Contains(analise, MarkerOK),
		Corrigido:   strings.Contains(analise, MarkerCorrigido),
		Divergencia: strings.Contains(analise, MarkerDivergencia),
		Removido:    strings.Contains(analise, MarkerRemovido),
		Grave:       strings.Contains(analise, MarkerGrave) || strings.Contains(analise, MarkerRescisao),
	}
	cs.Uncategorized = !cs.Ok && !cs.Corrigido && !cs.Divergencia && !cs.Removido && !cs.Grave
	return cs
}

// ClassFilter selects a classification bucket in the detail view.
type ClassFilter string

const (
	FilterAll         ClassFilter = "all"
	FilterOK          ClassFilter = "ok"
	FilterDivergencia ClassFilter = "divergencia"
	FilterRemovido    ClassFilter = "removido"
	FilterGrave       ClassFilter = "grave"
)

// MatchesFilter reports whether an analysis string falls into the given
// bucket. Unlike Classify this matches on a lower-cased copy of the text,
// and "ok" also accepts corrected records. The two call sites in the
// product genuinely use different case rules; keep them separate.
func MatchesFilter(analise string, filter ClassFilter) bool {
	lower := strings.ToLower(analise)
	switch filter {
	case FilterOK:
		return strings.Contains(lower, "ok") || strings.Contains(lower, "corrigido")
	case FilterDivergencia:
		return strings.Contains(lower, "divergência")
	case FilterRemovido:
		return strings.Contains(lower, "removido")
	case FilterGrave:
		return strings.Contains(lower, "inconsistência grave") || strings.Contains(lower, "rescisão")
	default:
		return true
	}
}

// ComplianceFilter selects the compliance bucket used by the advance-audit
// detail table, where a record is pending on divergence, warning on removal
// or any inconsistency, and ok otherwise.
type ComplianceFilter string

const (
	CompliancePending ComplianceFilter = "pending"
	ComplianceWarning ComplianceFilter = "warning"
	ComplianceOK      ComplianceFilter = "ok"
	ComplianceAll     ComplianceFilter = "all"
)

// IsPending reports whether the record diverges from the audited value.
func (cs ClassSet) IsPending() bool { return cs.Divergencia }

// IsWarning reports whether the record was removed by rule or flagged as a
// severe inconsistency.
func (cs ClassSet) IsWarning() bool { return cs.Removido || cs.Grave }

// MatchesCompliance reports whether a classification set falls into the
// given compliance bucket.
func (cs ClassSet) MatchesCompliance(filter ComplianceFilter) bool {
	switch filter {
	case CompliancePending:
		return cs.IsPending()
	case ComplianceWarning:
		return cs.IsWarning()
	case ComplianceOK:
		return !cs.IsPending() && !cs.IsWarning()
	default:
		return true
	}
}
