package item

// Fields is the wire and file form of a Record. Nil pointers are unset.
type Fields struct {
	Text     string  `json:"text"               toml:"text"`
	Filename string  `json:"filename"           toml:"filename"`
	Subtitle *string `json:"subtitle,omitempty" toml:"subtitle"`
	Voice    *string `json:"voice,omitempty"    toml:"voice"`
	HighPass *int    `json:"highpass,omitempty" toml:"highpass"`
	LowPass  *int    `json:"lowpass,omitempty"  toml:"lowpass"`
	NFilter  *int    `json:"nfilter,omitempty"  toml:"nfilter"`
	Volume   *int    `json:"volume,omitempty"   toml:"volume"`
	Noise    *int    `json:"noise,omitempty"    toml:"noise"`
	Emphasis *string `json:"emphasis,omitempty" toml:"emphasis"`
	Rate     *string `json:"rate,omitempty"     toml:"rate"`
	Pitch    *string `json:"pitch,omitempty"    toml:"pitch"`
	ClickIn  *bool   `json:"clickin,omitempty"  toml:"clickin"`
	ClickOut *bool   `json:"clickout,omitempty" toml:"clickout"`
}

// Record converts the fields to a Record.
func (f Fields) Record() Record {
	return Record{
		Text:     f.Text,
		Filename: f.Filename,
		Subtitle: FromPtr(f.Subtitle),
		Voice:    FromPtr(f.Voice),
		HighPass: FromPtr(f.HighPass),
		LowPass:  FromPtr(f.LowPass),
		NFilter:  FromPtr(f.NFilter),
		Volume:   FromPtr(f.Volume),
		Noise:    FromPtr(f.Noise),
		Emphasis: FromPtr(f.Emphasis),
		Rate:     FromPtr(f.Rate),
		Pitch:    FromPtr(f.Pitch),
		ClickIn:  FromPtr(f.ClickIn),
		ClickOut: FromPtr(f.ClickOut),
	}
}

// FieldsOf converts a Record to its wire form.
func FieldsOf(r Record) Fields {
	return Fields{
		Text:     r.Text,
		Filename: r.Filename,
		Subtitle: r.Subtitle.Ptr(),
		Voice:    r.Voice.Ptr(),
		HighPass: r.HighPass.Ptr(),
		LowPass:  r.LowPass.Ptr(),
		NFilter:  r.NFilter.Ptr(),
		Volume:   r.Volume.Ptr(),
		Noise:    r.Noise.Ptr(),
		Emphasis: r.Emphasis.Ptr(),
		Rate:     r.Rate.Ptr(),
		Pitch:    r.Pitch.Ptr(),
		ClickIn:  r.ClickIn.Ptr(),
		ClickOut: r.ClickOut.Ptr(),
	}
}
