// Package modelstore persists the classifier's artifacts: the vocabulary, the
// serialized network, and the cumulative training-data log. Every write goes
// through a temp file and rename so a failed call never truncates an artifact.
package modelstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/matrix-ai/backend/pkg/logger"
)

const (
	vocabFile        = "vocabulary.json"
	modelFile        = "model.json"
	trainingDataFile = "training_data.json"
)

type Sample struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

type ModelInfo struct {
	Exists       bool       `json:"exists"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create model dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) VocabularyExists() bool {
	_, err := os.Stat(filepath.Join(s.dir, vocabFile))
	return err == nil
}

func (s *Store) LoadVocabulary() (map[string]int, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, vocabFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	var vocab map[string]int
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}

	return vocab, nil
}

func (s *Store) SaveVocabulary(vocab map[string]int) error {
	data, err := json.Marshal(vocab)
	if err != nil {
		return fmt.Errorf("failed to marshal vocabulary: %w", err)
	}

	if err := s.writeFile(vocabFile, data); err != nil {
		return err
	}

	logger.Debug("Vocabulary saved", zap.Int("size", len(vocab)))
	return nil
}

func (s *Store) ModelExists() bool {
	_, err := os.Stat(filepath.Join(s.dir, modelFile))
	return err == nil
}

func (s *Store) LoadModel() ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, modelFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return data, nil
}

func (s *Store) SaveModel(data []byte) error {
	if err := s.writeFile(modelFile, data); err != nil {
		return err
	}

	logger.Info("Model saved", zap.Int("bytes", len(data)))
	return nil
}

func (s *Store) ModelInfo() ModelInfo {
	stat, err := os.Stat(filepath.Join(s.dir, modelFile))
	if err != nil {
		return ModelInfo{}
	}

	modTime := stat.ModTime()
	return ModelInfo{
		Exists:       true,
		Size:         stat.Size(),
		LastModified: &modTime,
	}
}

func (s *Store) LoadTrainingData() ([]Sample, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, trainingDataFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read training data: %w", err)
	}

	var samples []Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("failed to parse training data: %w", err)
	}

	return samples, nil
}

// AppendTrainingData adds samples to the durable log. The log only ever grows.
func (s *Store) AppendTrainingData(samples []Sample) error {
	existing, err := s.LoadTrainingData()
	if err != nil {
		return err
	}

	updated := append(existing, samples...)
	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to marshal training data: %w", err)
	}

	if err := s.writeFile(trainingDataFile, data); err != nil {
		return err
	}

	logger.Info("Training data appended",
		zap.Int("added", len(samples)),
		zap.Int("total", len(updated)),
	)
	return nil
}

func (s *Store) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	return nil
}
