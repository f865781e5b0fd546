package notify

import (
	"strings"
	"testing"

	"findit/pkg/domain"
)

var parties = domain.ClaimParties{
	ClaimID:      7,
	ItemName:     "Blue Umbrella",
	ClaimerName:  "Carl",
	ClaimerEmail: "carl@example.com",
	HelperName:   "Helen",
	HelperEmail:  "helen@example.com",
}

func TestConcernUpdate(t *testing.T) {
	tests := []struct {
		status domain.Status
		want   string
	}{
		{status: domain.StatusApproved, want: "Approved"},
		{status: domain.StatusRejected, want: "Rejected"},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			body, err := ConcernUpdate("Wallet", tc.status)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if !strings.Contains(body, "Wallet") || !strings.Contains(body, tc.want) {
				t.Fatalf("unexpected body: %s", body)
			}
		})
	}
}

func TestConcernUpdateEscapesItemName(t *testing.T) {
	body, err := ConcernUpdate(`<script>alert(1)</script>`, domain.StatusApproved)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Fatalf("item name was not escaped: %s", body)
	}
}

func TestClaimUpdateHelperDetailsOnlyOnApproval(t *testing.T) {
	approved, err := ClaimUpdate(parties, domain.StatusApproved)
	if err != nil {
		t.Fatalf("render approved: %v", err)
	}
	if !strings.Contains(approved, "Helen") || !strings.Contains(approved, "helen@example.com") {
		t.Fatalf("approved body missing helper details: %s", approved)
	}

	rejected, err := ClaimUpdate(parties, domain.StatusRejected)
	if err != nil {
		t.Fatalf("render rejected: %v", err)
	}
	if strings.Contains(rejected, "helen@example.com") {
		t.Fatalf("rejected body leaks helper email: %s", rejected)
	}
	if !strings.Contains(rejected, "Rejected") {
		t.Fatalf("rejected body missing status: %s", rejected)
	}
}

func TestHelperNotice(t *testing.T) {
	body, err := HelperNotice(parties)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Blue Umbrella", "Carl", "carl@example.com", "verify the person"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q: %s", want, body)
		}
	}
}
