package bot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xiaopang/profilebot/internal/model"
)

// LoadPersonalInfo reads the profile document. Files ending in .yaml or .yml
// are parsed as YAML, anything else as JSON.
func LoadPersonalInfo(path string) (*model.PersonalInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read personal info: %w", err)
	}

	var info model.PersonalInfo
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &info)
	default:
		err = json.Unmarshal(data, &info)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse personal info %s: %w", path, err)
	}
	if strings.TrimSpace(info.Name) == "" {
		return nil, fmt.Errorf("personal info %s: name is required", path)
	}
	return &info, nil
}
