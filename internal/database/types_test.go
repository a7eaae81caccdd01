package database

import "testing"

func TestEligible(t *testing.T) {
	desc := []float32{0.1, 0.2}

	tests := []struct {
		name     string
		status   ReportStatus
		desc     []float32
		expected bool
	}{
		{"approved with descriptor", StatusApproved, desc, true},
		{"approved without descriptor", StatusApproved, nil, false},
		{"pending with descriptor", StatusPending, desc, false},
		{"rejected with descriptor", StatusRejected, desc, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lost := LostReport{Status: tc.status, Descriptor: tc.desc}
			found := FoundReport{Status: tc.status, Descriptor: tc.desc}
			if lost.Eligible() != tc.expected {
				t.Errorf("LostReport.Eligible() = %v; want %v", lost.Eligible(), tc.expected)
			}
			if found.Eligible() != tc.expected {
				t.Errorf("FoundReport.Eligible() = %v; want %v", found.Eligible(), tc.expected)
			}
		})
	}
}

func TestStatusValidation(t *testing.T) {
	if !ValidLostStatus(StatusFound) || ValidLostStatus(StatusMatched) {
		t.Error("lost reports accept found but not matched")
	}
	if !ValidFoundStatus(StatusMatched) || ValidFoundStatus(StatusFound) {
		t.Error("found reports accept matched but not found")
	}
	if ValidLostStatus("archived") || ValidFoundStatus("") {
		t.Error("unknown statuses must be rejected")
	}
	if !ValidMatchStatus(MatchConfirmed) || ValidMatchStatus("approved") {
		t.Error("match status validation mismatch")
	}
}
