package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/vitals/internal/core/config"
)

// ConfigCheck runs deep config validation and reports warnings.
type ConfigCheck struct {
	cfg  *config.Config
	path string
}

func NewConfigCheck(cfg *config.Config, path string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, path: path}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	err := c.cfg.ValidateDeep(c.path)
	var fieldErrs criterio.FieldErrors
	switch {
	case err == nil:
		result.Items = append(result.Items, CheckItem{Label: "config", Status: StatusPass, Detail: c.path})
	case errors.As(err, &fieldErrs):
		for _, fe := range fieldErrs {
			result.Items = append(result.Items, CheckItem{Label: fe.Field, Status: StatusFail, Detail: fe.Err.Error()})
		}
	default:
		result.Items = append(result.Items, CheckItem{Label: "config", Status: StatusFail, Detail: err.Error()})
	}

	for _, w := range c.cfg.Warnings() {
		result.Items = append(result.Items, CheckItem{
			Label:  fmt.Sprintf("%s.%s", w.Category, w.Item),
			Status: StatusWarn,
			Detail: w.Message,
		})
	}

	return result
}

// DataDirCheck verifies the data directory exists or can be created, and
// that it accepts writes.
type DataDirCheck struct {
	dir string
}

func NewDataDirCheck(dir string) *DataDirCheck {
	return &DataDirCheck{dir: dir}
}

func (c *DataDirCheck) Name() string {
	return "Data directory"
}

func (c *DataDirCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		result.Items = append(result.Items, CheckItem{Label: c.dir, Status: StatusFail, Detail: err.Error()})
		return result
	}

	scratch, err := os.CreateTemp(c.dir, ".doctor-*")
	if err != nil {
		result.Items = append(result.Items, CheckItem{Label: c.dir, Status: StatusFail, Detail: "not writable: " + err.Error()})
		return result
	}
	name := scratch.Name()
	_ = scratch.Close()
	_ = os.Remove(name)

	result.Items = append(result.Items, CheckItem{Label: filepath.Clean(c.dir), Status: StatusPass, Detail: "writable"})
	return result
}
