package commands

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quivermath/quiver/errors"
	"github.com/quivermath/quiver/semantic"
)

// questionFile is the YAML batch format accepted by analyze and queue.
type questionFile struct {
	Questions []questionEntry `yaml:"questions"`
}

type questionEntry struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	Text        string `yaml:"text"`
	Explanation string `yaml:"explanation"`
}

func loadQuestionFile(path string) ([]semantic.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read question file %s", path)
	}

	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse question file %s", path)
	}
	if len(file.Questions) == 0 {
		return nil, errors.Newf("question file %s contains no questions", path)
	}

	questions := make([]semantic.Question, 0, len(file.Questions))
	for i, entry := range file.Questions {
		if entry.ID == "" {
			return nil, errors.Newf("question %d in %s has no id", i+1, path)
		}
		questions = append(questions, semantic.Question{
			ID:          entry.ID,
			Type:        entry.Type,
			Text:        entry.Text,
			Explanation: entry.Explanation,
		})
	}
	return questions, nil
}
