package safety

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCheckInput(t *testing.T) {
	f := NewFilter()

	ok, msg := f.CheckInput("I want to end my life")
	if ok || !strings.Contains(msg, "988") {
		t.Fatalf("expected crisis support with 988, got ok=%v msg=%q", ok, msg)
	}
	if _, _, concern := f.Inspect("I keep thinking about self-harm"); concern != ConcernCrisis {
		t.Fatalf("expected crisis concern, got %q", concern)
	}
	ok, msg = f.CheckInput("someone hit me yesterday")
	if ok || msg != AbuseSupport {
		t.Fatalf("expected abuse support, got ok=%v msg=%q", ok, msg)
	}
	ok, msg = f.CheckInput("Do you want to play?")
	if !ok || msg != "" {
		t.Fatalf("expected benign input to pass, got ok=%v msg=%q", ok, msg)
	}
}

func TestFilterResponseMedical(t *testing.T) {
	f := NewFilter()
	out, issues := f.FilterResponse("I diagnose you with a cold")
	if diff := cmp.Diff([]Issue{IssueMedicalAdvice}, issues); diff != "" {
		t.Fatalf("unexpected issues (-want +got):\n%s", diff)
	}
	if strings.Contains(strings.ToLower(out), "diagnose") {
		t.Fatalf("expected diagnosis claim removed, got %q", out)
	}
	if !strings.Contains(out, MedicalRedaction) || !strings.HasSuffix(out, MedicalDisclaimer) {
		t.Fatalf("expected redaction and disclaimer, got %q", out)
	}
	if strings.Contains(out, "[[") || strings.Count(out, MedicalRedaction) != 1 {
		t.Fatalf("expected a single flat redaction, got %q", out)
	}
	if want := "I " + MedicalRedaction + " you with a cold " + MedicalDisclaimer; out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestFilterResponseRedactionsDoNotNest(t *testing.T) {
	f := NewFilter()
	cases := []struct {
		name      string
		in        string
		redaction string
		count     int
	}{
		{"medical advice then dosage", "Here is medical advice: the dosage is high", MedicalRedaction, 2},
		{"doctor and medication", "I'm a doctor, change the medication", MedicalRedaction, 2},
		{"lawyer and legal advice", "A lawyer gave legal advice about your rights", LegalRedaction, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, _ := f.FilterResponse(tc.in)
			if strings.Contains(out, "[[") || strings.Contains(out, "]]") {
				t.Fatalf("expected no nested markers, got %q", out)
			}
			if got := strings.Count(out, tc.redaction); got != tc.count {
				t.Fatalf("expected %d redactions, got %d in %q", tc.count, got, out)
			}
		})
	}
}

func TestFilterResponseLegalAndHuman(t *testing.T) {
	f := NewFilter()
	out, issues := f.FilterResponse("As a human, I'm a person who says call a lawyer.")
	want := []Issue{IssueLegalAdvice, IssueHumanClaim}
	if diff := cmp.Diff(want, issues); diff != "" {
		t.Fatalf("unexpected issues (-want +got):\n%s", diff)
	}
	if strings.Contains(out, "lawyer") || !strings.Contains(out, LegalRedaction) {
		t.Fatalf("expected lawyer redacted, got %q", out)
	}
	if !strings.Contains(out, "as a pet") || !strings.Contains(out, "I'm a pet") {
		t.Fatalf("expected human claims rewritten, got %q", out)
	}
}

func TestFilterResponseHarmfulReplacesEverything(t *testing.T) {
	f := NewFilter()
	out, issues := f.FilterResponse("You should take 5 mg, you idiot")
	want := []Issue{IssueMedicalAdvice, IssueHarmfulContent}
	if diff := cmp.Diff(want, issues); diff != "" {
		t.Fatalf("unexpected issues (-want +got):\n%s", diff)
	}
	if out != DeescalationText {
		t.Fatalf("expected de-escalation text, got %q", out)
	}
}

func TestFilterResponseClean(t *testing.T) {
	f := NewFilter()
	in := "Woof! Let's go to the park!"
	out, issues := f.FilterResponse(in)
	if out != in || len(issues) != 0 {
		t.Fatalf("expected clean text untouched, got %q %v", out, issues)
	}
}
