// Package view turns resolver state into what each kind of screen shows and
// serves the page those screens run in.
package view

type TextMode string

const (
	TextTranscript TextMode = "transcript"
	TextScript     TextMode = "script"
	// TextBoth shows the transcript with the script underneath.
	TextBoth TextMode = "both"
)

// AllLines as Neighbors lists every line of the presentation.
const AllLines = -1

type Variant struct {
	Name  string
	Label string
	Text  TextMode
	// Neighbors is how many lines either side of the active one are listed,
	// measured in order values.
	Neighbors int
	Audio     bool
	// FollowGroup moves a presentation-addressed view along when its group
	// goes live with another presentation.
	FollowGroup bool
	// Control enables the operator's keyboard and click controls.
	Control bool
}

var (
	Audience = Variant{
		Name:        "audience",
		Label:       "Audience",
		Text:        TextTranscript,
		Audio:       true,
		FollowGroup: true,
	}
	Screen = Variant{
		Name:        "transcript",
		Label:       "Screen",
		Text:        TextTranscript,
		Audio:       true,
		FollowGroup: true,
	}
	Speaker = Variant{
		Name:        "speaker",
		Label:       "Speaker",
		Text:        TextScript,
		Neighbors:   3,
		FollowGroup: true,
	}
	Presenter = Variant{
		Name:      "presenter",
		Label:     "Presenter",
		Text:      TextBoth,
		Neighbors: AllLines,
		Control:   true,
	}
)

var variants = map[string]Variant{
	Audience.Name:  Audience,
	Screen.Name:    Screen,
	Speaker.Name:   Speaker,
	Presenter.Name: Presenter,
}

func VariantByName(name string) (Variant, bool) {
	v, ok := variants[name]
	return v, ok
}
