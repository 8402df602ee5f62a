package models

// Prediction is the classifier output for one feature vector.
type Prediction struct {
	Safe                bool
	SafeProbability     float64
	PhishingProbability float64
}

// Verdict is the answer returned to callers of a URL check.
type Verdict struct {
	URL              string  `json:"url"`
	Safe             bool    `json:"safe"`
	Confidence       float64 `json:"confidence"`
	UnsafeConfidence float64 `json:"unsafe_confidence"`
	Cached           bool    `json:"cached"`
}

// NewVerdict converts a prediction into percentages rounded to two decimals.
// Confidence always refers to the predicted label.
func NewVerdict(url string, p Prediction, cached bool) Verdict {
	safe := Round2(p.SafeProbability * 100)
	phishing := Round2(p.PhishingProbability * 100)
	v := Verdict{URL: url, Safe: p.Safe, Cached: cached}
	if p.Safe {
		v.Confidence, v.UnsafeConfidence = safe, phishing
	} else {
		v.Confidence, v.UnsafeConfidence = phishing, safe
	}
	return v
}
