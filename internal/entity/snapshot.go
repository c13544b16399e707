package entity

import "time"

const (
	InitialTemperature = "temperature"
	InitialPerson      = "person"
)

// Snapshot is one published view of the monitor state. It is never mutated after Publish.
type Snapshot struct {
	Temperature string    `json:"temperature"`
	Person      string    `json:"person"`
	FPS         float64   `json:"fps"`
	Frames      uint64    `json:"frames"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewSnapshot() Snapshot {
	return Snapshot{
		Temperature: InitialTemperature,
		Person:      InitialPerson,
	}
}

// Output joins both readings the way the status page renders them.
func (s Snapshot) Output() string {
	return s.Temperature + "\n" + s.Person
}
