// Package ivr renders dialogue responses into the JSON shapes the PBX executes.
package ivr

// Wire type names understood by the PBX
const (
	TypeSimpleMenu      = "simpleMenu"
	TypeGetDTMF         = "getDTMF"
	TypeSTT             = "stt"
	TypeExtensionChange = "extensionChange"
)

const (
	defaultTimeout     = 5
	defaultTimes       = 1
	defaultConfirmType = "no"
	musicOff           = "no"
)

// Kind selects how a Prompt collects input.
type Kind int

const (
	KindMenu Kind = iota
	KindDigits
	KindSpeech
)

func (k Kind) String() string {
	switch k {
	case KindMenu:
		return "menu"
	case KindDigits:
		return "digits"
	case KindSpeech:
		return "speech"
	}
	return "unknown"
}

// Descriptor is an internal response: a Prompt, a Transfer or a Terminal.
type Descriptor interface {
	descriptor()
}

// Prompt asks the caller a question. Name is the field the PBX sends back.
type Prompt struct {
	Kind Kind
	Name string
	Text string

	// digits and speech
	Min int
	Max int

	// digits and menu
	Timeout int

	// digits: "no", "digits", "number"
	ConfirmType string

	// menu
	EnabledKeys string
	Times       int
	Extension   string

	// speech recording file name
	FileName string
}

// Transfer moves the call to another extension.
type Transfer struct {
	Destination string
}

// Terminal plays a final message with no retry, optionally transferring after.
type Terminal struct {
	Name        string
	Message     string
	Destination string
}

func (Prompt) descriptor()   {}
func (Transfer) descriptor() {}
func (Terminal) descriptor() {}

// File is a single playback item.
type File struct {
	Text string `json:"text"`
}

// SimpleMenu plays files and optionally accepts one key.
type SimpleMenu struct {
	Type            string `json:"type"`
	Name            string `json:"name"`
	Times           int    `json:"times"`
	Timeout         int    `json:"timeout"`
	EnabledKeys     string `json:"enabledKeys"`
	SetMusic        string `json:"setMusic"`
	ExtensionChange string `json:"extensionChange"`
	Files           []File `json:"files"`
}

// GetDTMF collects keypad digits.
type GetDTMF struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Max         int    `json:"max"`
	Min         int    `json:"min"`
	Timeout     int    `json:"timeout"`
	ConfirmType string `json:"confirmType"`
	Files       []File `json:"files"`
}

// STT collects speech.
type STT struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Max      int    `json:"max"`
	Min      int    `json:"min"`
	FileName string `json:"fileName"`
	Files    []File `json:"files"`
}

// ExtensionChange transfers the call.
type ExtensionChange struct {
	Type              string `json:"type"`
	ExtensionIDChange string `json:"extensionIdChange"`
}

// Render converts a descriptor into its wire shape. Unknown descriptors
// render as nil.
func Render(d Descriptor) interface{} {
	switch r := d.(type) {
	case Prompt:
		return renderPrompt(r)
	case *Prompt:
		return renderPrompt(*r)
	case Transfer:
		return ExtensionChange{Type: TypeExtensionChange, ExtensionIDChange: r.Destination}
	case *Transfer:
		return ExtensionChange{Type: TypeExtensionChange, ExtensionIDChange: r.Destination}
	case Terminal:
		return renderTerminal(r)
	case *Terminal:
		return renderTerminal(*r)
	}
	return nil
}

func renderPrompt(p Prompt) interface{} {
	files := []File{{Text: p.Text}}

	switch p.Kind {
	case KindDigits:
		confirm := p.ConfirmType
		if confirm == "" {
			confirm = defaultConfirmType
		}
		return GetDTMF{
			Type:        TypeGetDTMF,
			Name:        p.Name,
			Max:         p.Max,
			Min:         p.Min,
			Timeout:     orDefault(p.Timeout, defaultTimeout),
			ConfirmType: confirm,
			Files:       files,
		}

	case KindSpeech:
		return STT{
			Type:     TypeSTT,
			Name:     p.Name,
			Max:      p.Max,
			Min:      p.Min,
			FileName: p.FileName,
			Files:    files,
		}

	default:
		return SimpleMenu{
			Type:            TypeSimpleMenu,
			Name:            p.Name,
			Times:           orDefault(p.Times, defaultTimes),
			Timeout:         orDefault(p.Timeout, defaultTimeout),
			EnabledKeys:     p.EnabledKeys,
			SetMusic:        musicOff,
			ExtensionChange: p.Extension,
			Files:           files,
		}
	}
}

func renderTerminal(t Terminal) SimpleMenu {
	return SimpleMenu{
		Type:            TypeSimpleMenu,
		Name:            t.Name,
		Times:           defaultTimes,
		Timeout:         defaultTimeout,
		EnabledKeys:     "",
		SetMusic:        musicOff,
		ExtensionChange: t.Destination,
		Files:           []File{{Text: t.Message}},
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
