package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/quivermath/quiver/errors"
)

// SaveTuning writes updated tuning parameters to the config file so they
// survive a fresh database. The rest of the file is preserved; rotating
// backups (.back1/.back2/.back3) are created before the write.
func SaveTuning(configPath string, tuning TuningConfig) error {
	if err := tuning.Validate(); err != nil {
		return err
	}

	if err := createBackup(configPath); err != nil {
		return err
	}

	// Read existing file into a generic tree so unrelated sections survive
	doc := map[string]interface{}{}
	if content, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(content, &doc); err != nil {
			return errors.Wrapf(err, "failed to parse existing config %s", configPath)
		}
	}

	semantic, _ := doc["semantic"].(map[string]interface{})
	if semantic == nil {
		semantic = map[string]interface{}{}
	}
	semantic["tuning"] = map[string]interface{}{
		"enabled":         tuning.Enabled,
		"tag_threshold":   tuning.TagThreshold,
		"sibling_lambda":  tuning.SiblingLambda,
		"up_beta":         tuning.UpBeta,
		"down_gamma":      tuning.DownGamma,
		"target_avg_tags": tuning.TargetAvgTags,
	}
	doc["semantic"] = semantic

	content, err := toml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config %s", configPath)
	}

	return nil
}

// createBackup creates rotating backups (.back1, .back2, .back3) before
// modifying the config file.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Rotate: .back3 deleted, .back2 -> .back3, .back1 -> .back2, current -> .back1
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete oldest backup")
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, 0644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// isBackupFile reports whether path is one of our rotating backups.
func isBackupFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".back1" || ext == ".back2" || ext == ".back3"
}
