package generation

import "testing"

func TestNormalizeQuestion(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"What is 2+2?", "what is 2+2?"},
		{"  What   is\n2+2?  ", "what is 2+2?"},
		{"", ""},
		{"   ", ""},
		{"UPPER lower", "upper lower"},
	}
	for _, tc := range cases {
		if got := NormalizeQuestion(tc.in); got != tc.want {
			t.Errorf("NormalizeQuestion(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDedupDrafts(t *testing.T) {
	drafts := []QuizDraft{
		{Question: "What is 2+2?"},
		{Question: "what  is 2+2?"}, // intra-batch duplicate after normalization
		{Question: "What is 3+3?"},
		{Question: "Already stored question"},
		{Question: "What is 4+4?"},
	}
	persisted := map[string]bool{"Already stored question": true}

	kept, dropped := DedupDrafts(drafts, persisted)
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if len(kept) != 3 {
		t.Fatalf("kept = %d, want 3", len(kept))
	}
	wantOrder := []string{"What is 2+2?", "What is 3+3?", "What is 4+4?"}
	for i, q := range wantOrder {
		if kept[i].Question != q {
			t.Errorf("kept[%d] = %q, want %q (order must be preserved)", i, kept[i].Question, q)
		}
	}
}

func TestDedupDraftsEmptyBatchAfterTrim(t *testing.T) {
	drafts := []QuizDraft{{Question: "Only question"}}
	kept, dropped := DedupDrafts(drafts, map[string]bool{"Only question": true})
	if len(kept) != 0 || dropped != 1 {
		t.Fatalf("kept=%d dropped=%d, want 0/1", len(kept), dropped)
	}
}
