package quality

import "fmt"

// Level is the verbal grade of a 0..100 score.
type Level int

const (
	NeedsWork Level = iota
	Okay
	Good
	Great
)

func (l Level) String() string {
	switch l {
	case Great:
		return "great"
	case Good:
		return "good"
	case Okay:
		return "okay"
	}
	return "needs work"
}

// LevelOf grades a score: above 70 great, above 60 good, above 40 okay.
func LevelOf(score float64) Level {
	switch {
	case score > 70:
		return Great
	case score > 60:
		return Good
	case score > 40:
		return Okay
	}
	return NeedsWork
}

var distanceText = [4]string{
	NeedsWork: "You're having trouble maintaining range throughout the reps. Try to keep your range consistent. Make sure you fully extend on every movement.",
	Okay:      "You're doing okay, but try to keep your range more consistent throughout the reps.",
	Good:      "Good job! Try to keep your range more consistent throughout the reps.",
	Great:     "Great job! You're keeping your range consistent throughout the reps.",
}

var timeText = [4]string{
	NeedsWork: "You're having trouble maintaining a consistent pace throughout the reps. Try to keep a more consistent pace.",
	Okay:      "You're doing okay, but try to keep a more consistent pace throughout the reps.",
	Good:      "Good job! Try to keep a more consistent pace throughout the reps.",
	Great:     "Great job! You're keeping a consistent pace throughout the reps.",
}

var shakinessText = [4]string{
	NeedsWork: "You're having trouble maintaining smooth movements throughout the reps. Try to keep your movements smoother.",
	Okay:      "You're doing okay, but try to keep your movements smoother throughout the reps.",
	Good:      "Good job! Try to keep your movements smoother throughout the reps.",
	Great:     "Great job! You're keeping your movements smooth throughout the reps.",
}

const noRepsText = "No repetitions detected."

// Feedback is what the athlete sees after a set or a workout.
type Feedback struct {
	Overall       float64 `json:"overall"`
	Rating        string  `json:"rating"`
	Distance      float64 `json:"distance"`
	DistanceText  string  `json:"distance_text"`
	Time          float64 `json:"time"`
	TimeText      string  `json:"time_text"`
	Shakiness     float64 `json:"shakiness"`
	ShakinessText string  `json:"shakiness_text"`
}

// Overall weighs pace twice as much as range or smoothness.
func Overall(time, distance, shakiness float64) float64 {
	return 0.5*time + 0.25*distance + 0.25*shakiness
}

// NewFeedback derives the texts for the given component scores.
func NewFeedback(distance, time, shakiness float64) Feedback {
	overall := Overall(time, distance, shakiness)
	return Feedback{
		Overall:       overall,
		Rating:        LevelOf(overall).String(),
		Distance:      distance,
		DistanceText:  distanceText[LevelOf(distance)],
		Time:          time,
		TimeText:      timeText[LevelOf(time)],
		Shakiness:     shakiness,
		ShakinessText: shakinessText[LevelOf(shakiness)],
	}
}

func noRepsFeedback() Feedback {
	return Feedback{
		Rating:        LevelOf(0).String(),
		DistanceText:  noRepsText,
		TimeText:      noRepsText,
		ShakinessText: noRepsText,
	}
}

// Aggregate averages the component and overall scores, then re-derives
// the texts. It is used from reps to a set and from sets to a workout.
func Aggregate(fbs ...Feedback) Feedback {
	if len(fbs) == 0 {
		return noRepsFeedback()
	}
	var d, t, s, o float64
	for _, fb := range fbs {
		d += fb.Distance
		t += fb.Time
		s += fb.Shakiness
		o += fb.Overall
	}
	n := float64(len(fbs))
	out := NewFeedback(d/n, t/n, s/n)
	out.Overall = o / n
	out.Rating = LevelOf(out.Overall).String()
	return out
}

// Summary is a one-line rendering for consoles and the display.
func (f Feedback) Summary() string {
	return fmt.Sprintf("overall %.0f (%s) range %.0f pace %.0f smooth %.0f",
		f.Overall, f.Rating, f.Distance, f.Time, f.Shakiness)
}

// Buckets counts repetitions per overall-score class.
type Buckets struct {
	Perfect int `json:"perfect"`
	Good    int `json:"good"`
	Fair    int `json:"fair"`
	Poor    int `json:"poor"`
}

// Classify sorts scores into Perfect (>70), Good (60-70], Fair (50-60]
// and Poor.
func Classify(scores ...float64) Buckets {
	var b Buckets
	for _, s := range scores {
		switch {
		case s > 70:
			b.Perfect++
		case s > 60:
			b.Good++
		case s > 50:
			b.Fair++
		default:
			b.Poor++
		}
	}
	return b
}

// Add merges two bucket counts.
func (b Buckets) Add(o Buckets) Buckets {
	return Buckets{
		Perfect: b.Perfect + o.Perfect,
		Good:    b.Good + o.Good,
		Fair:    b.Fair + o.Fair,
		Poor:    b.Poor + o.Poor,
	}
}
