package models

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		analise string
		want    ClassSet
	}{
		{
			name:    "plain ok",
			analise: "OK",
			want:    ClassSet{Ok: true},
		},
		{
			name:    "corrected value",
			analise: "Corrigido automaticamente",
			want:    ClassSet{Corrigido: true},
		},
		{
			name:    "value divergence",
			analise: "Divergência de valor",
			want:    ClassSet{Divergencia: true},
		},
		{
			name:    "removed by rule",
			analise: "Removido pelas regras",
			want:    ClassSet{Removido: true},
		},
		{
			name:    "severe inconsistency",
			analise: "INCONSISTÊNCIA GRAVE detectada",
			want:    ClassSet{Grave: true},
		},
		{
			name:    "termination counts as grave",
			analise: "Rescisão em andamento",
			want:    ClassSet{Grave: true},
		},
		{
			name:    "markers are not exclusive",
			analise: "Divergência e Removido pelas regras",
			want:    ClassSet{Divergencia: true, Removido: true},
		},
		{
			name:    "lowercase marker does not match",
			analise: "divergência de valor",
			want:    ClassSet{Uncategorized: true},
		},
		{
			name:    "empty text is uncategorized",
			analise: "",
			want:    ClassSet{Uncategorized: true},
		},
		{
			name:    "unknown text is uncategorized",
			analise: "sem análise disponível",
			want:    ClassSet{Uncategorized: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.analise)
			if got != tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.analise, got, tt.want)
			}
		})
	}
}

func TestMatchesFilter(t *testing.T) {
	tests := []struct {
		name    string
		analise string
		filter  ClassFilter
		want    bool
	}{
		{"all matches anything", "whatever", FilterAll, true},
		{"ok matches OK regardless of case", "ok para pagamento", FilterOK, true},
		{"ok matches corrected", "Corrigido", FilterOK, true},
		{"divergencia lower-cased", "DIVERGÊNCIA de valor", FilterDivergencia, true},
		{"removido lower-cased", "removido pelas regras", FilterRemovido, true},
		{"grave matches inconsistency", "INCONSISTÊNCIA GRAVE", FilterGrave, true},
		{"grave matches termination", "rescisão", FilterGrave, true},
		{"grave does not match divergence", "Divergência", FilterGrave, false},
		{"divergencia does not match ok", "OK", FilterDivergencia, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesFilter(tt.analise, tt.filter); got != tt.want {
				t.Errorf("MatchesFilter(%q, %q) = %v, want %v", tt.analise, tt.filter, got, tt.want)
			}
		})
	}
}

func TestMatchesCompliance(t *testing.T) {
	divergent := Classify("Divergência de valor")
	removed := Classify("Removido pelas regras")
	ok := Classify("OK")

	if !divergent.MatchesCompliance(CompliancePending) {
		t.Error("divergent record should be pending")
	}
	if !removed.MatchesCompliance(ComplianceWarning) {
		t.Error("removed record should be a warning")
	}
	if !ok.MatchesCompliance(ComplianceOK) {
		t.Error("ok record should be compliant")
	}
	if divergent.MatchesCompliance(ComplianceOK) {
		t.Error("divergent record must not be compliant")
	}
	if !ok.MatchesCompliance(ComplianceAll) {
		t.Error("all bucket should accept any record")
	}
}
