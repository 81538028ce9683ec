package view

// Keys under which a device keeps its preferences in localStorage.
const (
	FontSizeKey     = "fontSize"
	MainFontSizeKey = "mainFontSize"
	SubFontSizeKey  = "subFontSize"
	MutedKey        = "audioMuted"
)

const (
	DefaultFontSize     = 1.8
	DefaultMainFontSize = 3.0
	DefaultSubFontSize  = 0.9
	FontSizeStep        = 0.2
	MinFontSize         = 1.0
)

// Preferences are font sizes in rem. They live on the device; the server
// only renders the defaults.
type Preferences struct {
	FontSize     float64 `json:"fontSize"`
	MainFontSize float64 `json:"mainFontSize"`
	SubFontSize  float64 `json:"subFontSize"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		FontSize:     DefaultFontSize,
		MainFontSize: DefaultMainFontSize,
		SubFontSize:  DefaultSubFontSize,
	}
}

// FontControls tells the page script where each preference is stored and
// how the A+/A- buttons step fontSize. Keys maps a Preferences field to its
// localStorage key.
type FontControls struct {
	Keys map[string]string `json:"keys"`
	Step float64           `json:"step"`
	Min  float64           `json:"min"`
}

func DefaultFontControls() FontControls {
	return FontControls{
		Keys: map[string]string{
			"fontSize":     FontSizeKey,
			"mainFontSize": MainFontSizeKey,
			"subFontSize":  SubFontSizeKey,
		},
		Step: FontSizeStep,
		Min:  MinFontSize,
	}
}
