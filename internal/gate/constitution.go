package gate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zerotype19/gekko3/internal/model"
)

// LoadConstitution reads the immutable risk-rule configuration from a
// JSON file on disk (spec §3's Constitution; path comes from
// config.GateConfig.ConstitutionPath). The Constitution is treated as
// read-only for the lifetime of the process -- changing rules means
// editing the file and restarting the Gate, never a hot-reload path.
func LoadConstitution(path string) (model.Constitution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Constitution{}, fmt.Errorf("gate: read constitution %s: %w", path, err)
	}
	var c model.Constitution
	if err := json.Unmarshal(data, &c); err != nil {
		return model.Constitution{}, fmt.Errorf("gate: parse constitution %s: %w", path, err)
	}
	return c, nil
}
