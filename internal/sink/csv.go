package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// CSV appends rows to <dir>/<basename(zone)>_pid.csv, opening the file for
// each row so that log rotation and ramdisk wipes are picked up.
type CSV struct {
	dir string
}

func NewCSV(dir string) *CSV {
	return &CSV{dir: dir}
}

func (c *CSV) Path(zoneID string) string {
	return filepath.Join(c.dir, filepath.Base(zoneID)+"_pid.csv")
}

func (c *CSV) Append(_ context.Context, zoneID string, row []string) error {
	f, err := os.OpenFile(c.Path(zoneID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open csv for %s: %w", zoneID, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		f.Close()
		return fmt.Errorf("write csv for %s: %w", zoneID, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush csv for %s: %w", zoneID, err)
	}
	return f.Close()
}
