package points

import "time"

// Award reasons recorded on transactions.
const (
	ReasonTaskCompletion = "task_completion"
	ReasonStreakBonus    = "streak_bonus"
	ReasonTaskUncomplete = "task_uncomplete"
	ReasonManualAdjust   = "manual_adjust"
)

// PersonState is the running tally for one person. Lifetime only ever grows;
// negative awards reduce the balance but leave lifetime untouched.
type PersonState struct {
	Balance  int `json:"balance"`
	Lifetime int `json:"lifetime"`
}

type Transaction struct {
	ID        string            `json:"id"`
	PersonID  string            `json:"person_id"`
	Amount    int               `json:"amount"`
	Reason    string            `json:"reason"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
