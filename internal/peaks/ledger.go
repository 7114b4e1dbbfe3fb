package peaks

import (
	"fmt"
	"os"
	"sync"

	"pumpwatch/internal/domain"
)

const ledgerHeader = "Address,Name,Peak Timestamp (UTC),Peak Rate 1m,Peak Rate 3m,Peak Rate 5m\n"

// Append-only CSV file of peak snapshots. One row per write, never rewritten
// in place; the header is created once when the file does not exist yet.
type Ledger struct {
	mu   sync.Mutex
	path string
}

func NewLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path}
	if err := l.ensureFile(); err != nil {
		return nil, fmt.Errorf("failed to prepare peak ledger %s: %w", path, err)
	}
	return l, nil
}

func (l *Ledger) ensureFile() error {
	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(l.path, []byte(ledgerHeader), 0o644)
}

func (l *Ledger) Append(rec domain.PeakRecord) error {
	row := fmt.Sprintf("%s,%q,%q,%d,%d,%d\n",
		rec.Mint, rec.Name, FormatPeakTimestamp(rec.PeakAt),
		rec.Rate1m, rec.Rate3m, rec.Rate5m)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.WriteString(row); err != nil {
		return err
	}
	return f.Sync()
}
