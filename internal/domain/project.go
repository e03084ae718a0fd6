package domain

// UnknownProjectName is shown when a timer references a project that is not
// in the local project list.
const UnknownProjectName = "Unknown project"

// MileageRatePerKm is the compensation per driven kilometer in euro.
const MileageRatePerKm = 0.23

// Project is a billable project owned by the project collaborator. The timer
// only ever references it by ID.
type Project struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Client     string  `json:"client"`
	HourlyRate float64 `json:"hourlyRate"`
	IsActive   bool    `json:"isActive"`
}

// ProjectName looks up a project name by ID.
func ProjectName(projects []Project, id int64) string {
	for _, p := range projects {
		if p.ID == id {
			return p.Name
		}
	}
	return UnknownProjectName
}

// Period selects the overview window.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// IsValid checks if the period is known.
func (p Period) IsValid() bool {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// TimeSummary is one row of the hours overview.
type TimeSummary struct {
	ID      string  `json:"id"`
	Date    string  `json:"date"`
	Project string  `json:"project"`
	Hours   float64 `json:"hours"`
	Rate    float64 `json:"rate"`
}

// MileageSummary is one row of the mileage overview.
type MileageSummary struct {
	ID         string  `json:"id"`
	Date       string  `json:"date"`
	Project    string  `json:"project"`
	Kilometers float64 `json:"kilometers"`
	Rate       float64 `json:"rate"`
}
