package models

// Airstrip is a landing site. Airstrips flagged as bases can have other
// airstrips attached to them.
type Airstrip struct {
	ID     int64  `json:"id"`
	Ident  string `json:"ident"`
	Name   string `json:"name"`
	IsBase bool   `json:"is_base"`
}

func (a *Airstrip) String() string {
	return a.Name
}

// AirstripNames returns the display names of the given airstrips, in order
func AirstripNames(airstrips []Airstrip) []string {
	names := make([]string, 0, len(airstrips))
	for _, a := range airstrips {
		names = append(names, a.Name)
	}
	return names
}

// BaseSummary pairs a base with the number of airstrips attached and not attached to it
type BaseSummary struct {
	Base       Airstrip `json:"base"`
	Attached   int      `json:"attached"`
	Unattached int      `json:"unattached"`
}
