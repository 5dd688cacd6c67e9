package pnl

import (
	"os"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Checkpoint is the watermark up to which realized PnL and funding have
// been attributed. Persisted after each close attribution so a restart
// neither double-counts nor skips PnL.
type Checkpoint struct {
	LastPnlCheckMs int64 `json:"last_pnl_check_ms"`
}

// LoadCheckpoint reads the checkpoint file. A missing file yields a zero
// checkpoint, not an error.
func LoadCheckpoint(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, nil
		}
		return Checkpoint{}, errors.Wrap(err, "read checkpoint")
	}
	var cp Checkpoint
	if err := sonic.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, errors.Wrap(err, "decode checkpoint")
	}
	return cp, nil
}

// SaveCheckpoint writes atomically: temp file in the same directory,
// then rename over the target, so a crash never leaves a partial file.
func SaveCheckpoint(path string, cp Checkpoint) error {
	data, err := sonic.Marshal(cp)
	if err != nil {
		return errors.Wrap(err, "encode checkpoint")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write checkpoint temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "replace checkpoint")
	}
	return nil
}
