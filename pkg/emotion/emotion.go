// Package emotion classifies the facial expression in a cropped face image.
//
// Analysis is delegated to an external model behind the Classifier
// interface. Backends are a DeepFace REST server, a DeepFace worker process
// speaking a length-prefixed pipe protocol, and vision LLMs (Gemini, OpenAI).
// Classifiers can be chained so a failing backend falls through to the next.
//
// Example usage:
//
//	c := emotion.NewDeepFace(emotion.WithBaseURL("http://localhost:5005"))
//	defer c.Close()
//
//	a, err := c.Classify(ctx, faceJPEG)
//	if err != nil {
//	    return err
//	}
//	label, score, _ := emotion.Dominant(a.Scores)
package emotion

import (
	"context"
	"sort"
	"strings"
)

// Emotion labels produced by DeepFace's emotion model.
const (
	Angry    = "angry"
	Disgust  = "disgust"
	Fear     = "fear"
	Happy    = "happy"
	Sad      = "sad"
	Surprise = "surprise"
	Neutral  = "neutral"
)

// Vocabulary is the fixed label set, in tie-break order.
var Vocabulary = []string{Angry, Disgust, Fear, Happy, Sad, Surprise, Neutral}

// Scores maps an emotion label to a confidence score.
// Backends differ in scale (DeepFace reports percentages, LLMs 0-1).
type Scores map[string]float64

// Dominant returns the highest-scoring label. Ties resolve in Vocabulary
// order, then alphabetically for labels outside the vocabulary.
// ok is false when scores is empty.
func Dominant(scores Scores) (label string, score float64, ok bool) {
	for _, l := range orderedLabels(scores) {
		s := scores[l]
		if !ok || s > score {
			label, score, ok = l, s, true
		}
	}
	return label, score, ok
}

// Normalize returns a copy of scores that sums to 1.
// Negative scores are treated as 0. An all-zero input is returned as zeros.
func Normalize(scores Scores) Scores {
	var total float64
	for _, s := range scores {
		if s > 0 {
			total += s
		}
	}

	out := make(Scores, len(scores))
	for l, s := range scores {
		if s < 0 || total == 0 {
			out[l] = 0
			continue
		}
		out[l] = s / total
	}
	return out
}

// orderedLabels lists vocabulary labels present in scores first, then the
// rest sorted.
func orderedLabels(scores Scores) []string {
	labels := make([]string, 0, len(scores))
	seen := make(map[string]bool, len(Vocabulary))
	for _, l := range Vocabulary {
		if _, ok := scores[l]; ok {
			labels = append(labels, l)
			seen[l] = true
		}
	}

	var extra []string
	for l := range scores {
		if !seen[l] {
			extra = append(extra, l)
		}
	}
	sort.Strings(extra)
	return append(labels, extra...)
}

// canonical lower-cases labels and maps common synonyms onto the vocabulary.
func canonical(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	switch l {
	case "anger":
		return Angry
	case "disgusted":
		return Disgust
	case "fearful", "scared":
		return Fear
	case "happiness", "joy":
		return Happy
	case "sadness":
		return Sad
	case "surprised":
		return Surprise
	case "calm":
		return Neutral
	}
	return l
}

// Region is a face area reported by a backend, relative to the crop.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Area returns the region area in square pixels.
func (r Region) Area() int {
	return r.W * r.H
}

// Analysis is a backend's verdict for the most prominent face in a crop.
type Analysis struct {
	// Scores is the emotion distribution. The caller picks the argmax.
	Scores Scores

	// Region is where the backend found the face inside the crop.
	// Zero when the backend does not report one.
	Region Region

	// Provider names the backend that produced the analysis.
	Provider string

	// LatencyMs is the round-trip time in milliseconds.
	LatencyMs int64
}

// Dominant returns the argmax of a.Scores.
func (a *Analysis) Dominant() (label string, score float64, ok bool) {
	return Dominant(a.Scores)
}

// Classifier analyzes a JPEG-encoded face crop.
type Classifier interface {
	// Classify returns the emotion distribution of the most prominent face
	// in the image. Returns ErrEmptyImage for an empty crop.
	Classify(ctx context.Context, jpeg []byte) (*Analysis, error)

	// Name identifies the backend in logs and reports.
	Name() string

	// Close releases any resources held by the classifier.
	Close() error
}

// mostProminent returns the index of the candidate with the largest region.
// The first candidate wins ties, including when no regions are reported.
func mostProminent(regions []Region) int {
	best, bestArea := 0, -1
	for i, r := range regions {
		if r.Area() > bestArea {
			best, bestArea = i, r.Area()
		}
	}
	return best
}
