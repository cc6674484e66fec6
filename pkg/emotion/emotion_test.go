package emotion

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestDominant(t *testing.T) {
	tests := []struct {
		name      string
		scores    Scores
		wantLabel string
		wantOK    bool
	}{
		{
			name:      "clear winner",
			scores:    Scores{Happy: 97.1, Sad: 1.2, Neutral: 1.7},
			wantLabel: Happy,
			wantOK:    true,
		},
		{
			name:   "empty",
			scores: Scores{},
		},
		{
			name:      "tie resolves in vocabulary order",
			scores:    Scores{Neutral: 0.5, Angry: 0.5},
			wantLabel: Angry,
			wantOK:    true,
		},
		{
			name:      "tie with unknown label prefers vocabulary",
			scores:    Scores{"contempt": 0.5, Sad: 0.5},
			wantLabel: Sad,
			wantOK:    true,
		},
		{
			name:      "unknown labels tie alphabetically",
			scores:    Scores{"zeal": 1, "awe": 1},
			wantLabel: "awe",
			wantOK:    true,
		},
		{
			name:      "all zero",
			scores:    Scores{Fear: 0, Surprise: 0},
			wantLabel: Fear,
			wantOK:    true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			label, _, ok := Dominant(tc.scores)
			if ok != tc.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tc.wantOK)
			}
			if label != tc.wantLabel {
				t.Errorf("label: got %q, want %q", label, tc.wantLabel)
			}
		})
	}
}

func TestDominant_Stable(t *testing.T) {
	scores := Scores{Happy: 0.3, Surprise: 0.3, Disgust: 0.3}
	for i := 0; i < 50; i++ {
		if label, _, _ := Dominant(scores); label != Disgust {
			t.Fatalf("iteration %d: got %q, want %q", i, label, Disgust)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(Scores{Happy: 75, Sad: 25, Angry: -3})
	if math.Abs(got[Happy]-0.75) > 1e-9 || math.Abs(got[Sad]-0.25) > 1e-9 {
		t.Errorf("Normalize: got %v", got)
	}
	if got[Angry] != 0 {
		t.Errorf("negative score should normalize to 0, got %v", got[Angry])
	}

	zero := Normalize(Scores{Happy: 0})
	if zero[Happy] != 0 {
		t.Errorf("all-zero input: got %v", zero)
	}
}

func TestParseScores(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantLabel string
		wantErr   bool
	}{
		{
			name:      "plain object",
			text:      `{"happy": 0.8, "neutral": 0.2}`,
			wantLabel: Happy,
		},
		{
			name:      "fenced",
			text:      "```json\n{\"sad\": 0.9, \"neutral\": 0.1}\n```",
			wantLabel: Sad,
		},
		{
			name:      "prose around object",
			text:      "Sure! Here you go: {\"angry\": 0.6, \"fear\": 0.4} Hope that helps.",
			wantLabel: Angry,
		},
		{
			name:      "nested emotion object",
			text:      `{"emotion": {"surprise": 0.7, "happy": 0.3}, "face": true}`,
			wantLabel: Surprise,
		},
		{
			name:      "synonyms and case",
			text:      `{"Happiness": 0.1, "Sadness": 0.9}`,
			wantLabel: Sad,
		},
		{
			name:    "no json",
			text:    "I cannot see a face.",
			wantErr: true,
		},
		{
			name:    "no numeric values",
			text:    `{"emotion": "happy"}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scores, err := ParseScores(tc.text)
			if tc.wantErr {
				if !errors.Is(err, ErrNoScores) {
					t.Errorf("expected ErrNoScores, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScores: %v", err)
			}
			if label, _, _ := Dominant(scores); label != tc.wantLabel {
				t.Errorf("dominant: got %q, want %q (scores %v)", label, tc.wantLabel, scores)
			}
		})
	}
}

func TestParseScores_Normalized(t *testing.T) {
	scores, err := ParseScores(`{"happy": 60, "sad": 20, "neutral": 20}`)
	if err != nil {
		t.Fatalf("ParseScores: %v", err)
	}
	if math.Abs(scores[Happy]-0.6) > 1e-9 || math.Abs(scores[Sad]-0.2) > 1e-9 {
		t.Errorf("expected a distribution, got %v", scores)
	}
}

func TestAnalysisFrom(t *testing.T) {
	t.Run("picks largest region", func(t *testing.T) {
		results := []faceResult{
			{Emotion: Scores{Sad: 90}, Region: Region{W: 10, H: 10}},
			{Emotion: Scores{Happy: 90}, Region: Region{W: 40, H: 40}},
			{Emotion: Scores{Angry: 90}, Region: Region{W: 20, H: 20}},
		}
		a, err := analysisFrom(results)
		if err != nil {
			t.Fatalf("analysisFrom: %v", err)
		}
		if label, _, _ := a.Dominant(); label != Happy {
			t.Errorf("got %q, want %q", label, Happy)
		}
		if a.Region.W != 40 {
			t.Errorf("region: got %+v", a.Region)
		}
	})

	t.Run("no results", func(t *testing.T) {
		if _, err := analysisFrom(nil); !errors.Is(err, ErrNoFace) {
			t.Errorf("expected ErrNoFace, got %v", err)
		}
	})

	t.Run("missing emotion", func(t *testing.T) {
		_, err := analysisFrom([]faceResult{{Region: Region{W: 1, H: 1}}})
		if !errors.Is(err, ErrNoScores) {
			t.Errorf("expected ErrNoScores, got %v", err)
		}
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
		unauth    bool
	}{
		{code: 429, retryable: true},
		{code: 503, retryable: true},
		{code: 401, unauth: true},
		{code: 400},
	}
	for _, tc := range tests {
		e := &APIError{StatusCode: tc.code, Provider: "test"}
		if e.IsRetryable() != tc.retryable {
			t.Errorf("%d: IsRetryable got %v", tc.code, e.IsRetryable())
		}
		if e.IsUnauthorized() != tc.unauth {
			t.Errorf("%d: IsUnauthorized got %v", tc.code, e.IsUnauthorized())
		}
	}
}

func TestWrapError(t *testing.T) {
	if WrapError("x", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}
	err := WrapError("deepface", ErrEmptyImage)
	if !errors.Is(err, ErrEmptyImage) {
		t.Error("wrapped error should unwrap to ErrEmptyImage")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Provider != "deepface" {
		t.Errorf("expected ProviderError for deepface, got %v", err)
	}
}

func TestMock(t *testing.T) {
	m := NewMock()
	a, err := m.Classify(context.Background(), []byte{0xFF, 0xD8})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if label, _, _ := a.Dominant(); label != Happy {
		t.Errorf("got %q, want happy", label)
	}
	a.Scores[Happy] = 0
	b, _ := m.Classify(context.Background(), []byte{1})
	if b.Scores[Happy] != 90 {
		t.Error("mock scores should not be shared between calls")
	}

	if m.CallCount("Classify") != 2 {
		t.Errorf("CallCount: got %d, want 2", m.CallCount("Classify"))
	}
	if calls := m.Calls(); calls[0].Bytes != 2 {
		t.Errorf("recorded bytes: got %d, want 2", calls[0].Bytes)
	}
	m.Reset()
	if len(m.Calls()) != 0 {
		t.Error("Reset should clear calls")
	}
}
