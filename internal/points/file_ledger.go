package points

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger awards points to people and answers balance queries.
type Ledger interface {
	Award(personID string, amount int, reason string, metadata map[string]string) (string, error)
	Balance(personID string) PersonState
	Transactions(personID string, since time.Time) []Transaction
}

type fileState struct {
	People       map[string]PersonState `json:"people"`
	Transactions []Transaction          `json:"transactions"`
}

// FileLedger is a JSON-file-backed Ledger. All people share one file.
type FileLedger struct {
	mu   sync.RWMutex
	path string
	s    fileState
}

func NewFileLedger(dataDir string) (*FileLedger, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	l := &FileLedger{
		path: filepath.Join(dataDir, "points.json"),
		s: fileState{
			People: map[string]PersonState{},
		},
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLedger) load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.s = fileState{People: map[string]PersonState{}}
			return nil
		}
		return err
	}

	var loaded fileState
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded.People == nil {
		loaded.People = map[string]PersonState{}
	}
	l.s = loaded
	return nil
}

func (l *FileLedger) saveLocked() error {
	b, err := json.MarshalIndent(l.s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, b, 0o644)
}

// Award applies a signed point delta and records a transaction. A zero amount
// records nothing and returns an empty id.
func (l *FileLedger) Award(personID string, amount int, reason string, metadata map[string]string) (string, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" || amount == 0 {
		return "", nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ps := l.s.People[personID]
	ps.Balance += amount
	if amount > 0 {
		ps.Lifetime += amount
	}
	l.s.People[personID] = ps

	tx := Transaction{
		ID:        uuid.NewString(),
		PersonID:  personID,
		Amount:    amount,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
	l.s.Transactions = append(l.s.Transactions, tx)

	if err := l.saveLocked(); err != nil {
		return "", err
	}
	return tx.ID, nil
}

func (l *FileLedger) Balance(personID string) PersonState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s.People[personID]
}

func (l *FileLedger) Transactions(personID string, since time.Time) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Transaction, 0)
	for _, tx := range l.s.Transactions {
		if personID != "" && tx.PersonID != personID {
			continue
		}
		if tx.Timestamp.Before(since) {
			continue
		}
		out = append(out, tx)
	}
	return out
}
