package models

// AircraftType is an aircraft model a pilot can be checked out in (e.g. C185, PC-6)
type AircraftType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (t *AircraftType) String() string {
	return t.Name
}
