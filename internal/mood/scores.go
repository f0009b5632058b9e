package mood

// Scores maps each mood to the classifier confidence for one face in one frame.
// Keys outside the enumeration are ignored by Strongest.
type Scores map[Mood]float64

// Box is a face region in frame pixel coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Face is one detected face with its expression scores.
type Face struct {
	Box         Box     `json:"box"`
	Score       float64 `json:"score,omitempty"` // detector confidence that this is a face
	Expressions Scores  `json:"expressions"`
}

// Observation is the winning mood of a single tick.
type Observation struct {
	Mood       Mood
	Confidence float64
}

// Top returns the strongest mood for a single face.
func (s Scores) Top() (Observation, bool) {
	var best Observation
	found := false
	for _, m := range All {
		v, ok := s[m]
		if !ok {
			continue
		}
		if !found || v > best.Confidence {
			best = Observation{Mood: m, Confidence: v}
			found = true
		}
	}
	return best, found
}

// Strongest scans every face and every mood and keeps the pair with the
// greatest confidence. Comparison is strict, so on ties the earlier face
// (detector order) wins, then the earlier mood in enumeration order.
// Returns false when no face carries any known mood score.
func Strongest(faces []Face) (Observation, bool) {
	var best Observation
	found := false
	for _, f := range faces {
		top, ok := f.Expressions.Top()
		if !ok {
			continue
		}
		if !found || top.Confidence > best.Confidence {
			best = top
			found = true
		}
	}
	return best, found
}
