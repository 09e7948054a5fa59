package nlp

import (
	"math"
	"runtime"
	"sync"

	deep "github.com/patrikeh/go-deep"
	"github.com/patrikeh/go-deep/training"
	"go.uber.org/zap"

	"github.com/matrix-ai/backend/internal/storage/modelstore"
	"github.com/matrix-ai/backend/pkg/apperr"
	"github.com/matrix-ai/backend/pkg/logger"
)

type ClassificationResult struct {
	Text        string             `json:"text"`
	Categories  map[string]float64 `json:"categories"`
	TopCategory string             `json:"topCategory"`
	Confidence  float64            `json:"confidence"`
	IsHighRisk  bool               `json:"isHighRisk"`
}

type TrainOptions struct {
	Epochs          int     `json:"epochs"`
	BatchSize       int     `json:"batchSize"`
	ValidationSplit float64 `json:"validationSplit"`
	LearningRate    float64 `json:"learningRate"`
	SaveModel       *bool   `json:"saveModel"`
}

type EpochMetrics struct {
	Epoch    int     `json:"epoch"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

type TrainingResult struct {
	Epochs        int            `json:"epochs"`
	FinalLoss     float64        `json:"finalLoss"`
	FinalAccuracy float64        `json:"finalAccuracy"`
	History       []EpochMetrics `json:"history"`
	SamplesUsed   int            `json:"samplesUsed"`
	Skipped       int            `json:"skipped"`
}

type CategoryMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Samples   int     `json:"samples"`
}

type EvaluationResult struct {
	Loss         float64                    `json:"loss"`
	Accuracy     float64                    `json:"accuracy"`
	PerCategory  map[string]CategoryMetrics `json:"categoryMetrics"`
	SamplesCount int                        `json:"samplesCount"`
}

type ModelReport struct {
	TrainingDataCount int                  `json:"trainingDataCount"`
	CategoryCounts    map[string]int       `json:"categoryCounts"`
	VocabularySize    int                  `json:"vocabularySize"`
	ModelInfo         modelstore.ModelInfo `json:"modelInfo"`
}

// Classifier owns the loaded network and vocabulary. Predictions take the
// read side of the lock; Train holds it exclusively across vocabulary growth
// and model save, so a training write cannot interleave with inference reads.
type Classifier struct {
	store         *modelstore.Store
	maxLen        int
	vocabCapacity int
	highRisk      float64

	mu    sync.RWMutex
	vocab *Vocabulary
	net   *deep.Neural
}

func NewClassifier(store *modelstore.Store, maxLen, vocabCapacity int, highRiskThreshold float64) *Classifier {
	return &Classifier{
		store:         store,
		maxLen:        maxLen,
		vocabCapacity: vocabCapacity,
		highRisk:      highRiskThreshold,
	}
}

// Load restores the vocabulary and model from disk. A missing model triggers
// a bootstrap of the default architecture; a present but unreadable model is
// an error.
func (c *Classifier) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.VocabularyExists() {
		m, err := c.store.LoadVocabulary()
		if err != nil {
			return apperr.Wrap(apperr.KindConfiguration, "vocabulary unavailable", err)
		}
		c.vocab = VocabularyFromMap(m)
		logger.Info("Vocabulary loaded", zap.Int("size", c.vocab.Size()))
	} else {
		logger.Warn("Vocabulary not found, seeding base vocabulary")
		c.vocab = BaseVocabulary()
		if err := c.store.SaveVocabulary(c.vocab.Map()); err != nil {
			return err
		}
	}

	if !c.store.ModelExists() {
		logger.Warn("Model not found, bootstrapping default architecture")
		return c.bootstrapLocked()
	}

	data, err := c.store.LoadModel()
	if err != nil {
		return apperr.Wrap(apperr.KindModelLoad, "failed to read model", err)
	}

	net, err := deep.Unmarshal(data)
	if err != nil {
		return apperr.Wrap(apperr.KindModelLoad, "model file is corrupt", err)
	}

	c.net = net
	logger.Info("Model loaded")
	return nil
}

func (c *Classifier) bootstrapLocked() error {
	c.net = deep.NewNeural(&deep.Config{
		Inputs:     c.maxLen,
		Layout:     []int{64, 32, len(Categories)},
		Activation: deep.ActivationReLU,
		Mode:       deep.ModeMultiClass,
		Weight:     deep.NewNormal(0.5, 0.0),
		Bias:       true,
	})

	data, err := c.net.Marshal()
	if err != nil {
		return apperr.Wrap(apperr.KindModelLoad, "failed to serialize bootstrap model", err)
	}
	if err := c.store.SaveModel(data); err != nil {
		return err
	}

	logger.Info("Default model bootstrapped")
	return nil
}

// Classify runs the loaded model over text and returns the probability
// distribution across the category set.
func (c *Classifier) Classify(text string) (*ClassificationResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.vocab == nil {
		return nil, apperr.New(apperr.KindConfiguration, "vocabulary is not loaded")
	}
	if c.net == nil {
		return nil, apperr.New(apperr.KindConfiguration, "model is not loaded")
	}

	seq := c.vocab.ToSequence(Tokenize(text), c.maxLen)
	probs := c.net.Predict(c.sequenceToInput(seq))

	result := resultFromProbs(probs, c.highRisk)
	result.Text = text
	return result, nil
}

// Train fits the model on labeled samples, growing the vocabulary with the
// unseen tokens the samples carry. Samples with an unknown category are
// skipped with a warning, not failed.
func (c *Classifier) Train(samples []modelstore.Sample, opts TrainOptions) (*TrainingResult, error) {
	epochs, batchSize, valSplit, lr, save := normalizeOptions(opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vocab == nil || c.net == nil {
		return nil, apperr.New(apperr.KindModelLoad, "model is not loaded; initialize the model first")
	}

	examples, valid, skipped := c.buildExamplesLocked(samples, true)
	if len(examples) == 0 {
		return nil, apperr.New(apperr.KindValidation, "no valid training samples")
	}

	examples.Shuffle()
	train, heldout := examples, training.Examples{}
	if valSplit > 0 && len(examples) > 1 {
		train, heldout = examples.Split(1 - valSplit)
		if len(train) == 0 {
			train, heldout = examples, training.Examples{}
		}
	}

	optimizer := training.NewAdam(lr, 0.9, 0.999, 1e-8)
	trainer := training.NewBatchTrainer(optimizer, 0, batchSize, runtime.NumCPU())

	evalSet := heldout
	if len(evalSet) == 0 {
		evalSet = train
	}

	history := make([]EpochMetrics, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		trainer.Train(c.net, train, nil, 1)

		loss, accuracy := c.scoreExamplesLocked(evalSet)
		history = append(history, EpochMetrics{Epoch: epoch, Loss: loss, Accuracy: accuracy})

		logger.Debug("Training epoch finished",
			zap.Int("epoch", epoch),
			zap.Int("epochs", epochs),
			zap.Float64("loss", loss),
			zap.Float64("accuracy", accuracy),
		)
	}

	if save {
		if err := c.store.SaveVocabulary(c.vocab.Map()); err != nil {
			return nil, err
		}
		data, err := c.net.Marshal()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindModelLoad, "failed to serialize model", err)
		}
		if err := c.store.SaveModel(data); err != nil {
			return nil, err
		}
		if err := c.store.AppendTrainingData(valid); err != nil {
			return nil, err
		}
	}

	final := history[len(history)-1]
	logger.Info("Model trained",
		zap.Int("samples", len(valid)),
		zap.Int("skipped", skipped),
		zap.Float64("final_loss", final.Loss),
		zap.Float64("final_accuracy", final.Accuracy),
	)

	return &TrainingResult{
		Epochs:        epochs,
		FinalLoss:     final.Loss,
		FinalAccuracy: final.Accuracy,
		History:       history,
		SamplesUsed:   len(valid),
		Skipped:       skipped,
	}, nil
}

// Evaluate scores the model against labeled samples without touching the
// vocabulary or the persisted model.
func (c *Classifier) Evaluate(samples []modelstore.Sample) (*EvaluationResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.vocab == nil || c.net == nil {
		return nil, apperr.New(apperr.KindModelLoad, "model is not loaded; initialize the model first")
	}

	examples, valid, _ := c.buildExamplesLocked(samples, false)
	if len(examples) == 0 {
		return nil, apperr.New(apperr.KindValidation, "no valid test samples")
	}

	loss, accuracy := c.scoreExamplesLocked(examples)

	// Confusion counts from predicted-vs-true argmax indices.
	tp := make([]int, len(Categories))
	fp := make([]int, len(Categories))
	fn := make([]int, len(Categories))
	trueCount := make([]int, len(Categories))

	for _, ex := range examples {
		pred := argmax(c.net.Predict(ex.Input))
		truth := argmax(ex.Response)
		trueCount[truth]++
		if pred == truth {
			tp[pred]++
		} else {
			fp[pred]++
			fn[truth]++
		}
	}

	perCategory := make(map[string]CategoryMetrics, len(Categories))
	for i, category := range Categories {
		precision := ratio(tp[i], tp[i]+fp[i])
		recall := ratio(tp[i], tp[i]+fn[i])
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		perCategory[category] = CategoryMetrics{
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Samples:   trueCount[i],
		}
	}

	return &EvaluationResult{
		Loss:         loss,
		Accuracy:     accuracy,
		PerCategory:  perCategory,
		SamplesCount: len(valid),
	}, nil
}

// Report summarizes the persisted artifacts: training-data volume per
// category, vocabulary size, and model file state.
func (c *Classifier) Report() (*ModelReport, error) {
	samples, err := c.store.LoadTrainingData()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(Categories))
	for _, category := range Categories {
		counts[category] = 0
	}
	for _, s := range samples {
		counts[s.Category]++
	}

	c.mu.RLock()
	vocabSize := 0
	if c.vocab != nil {
		vocabSize = c.vocab.Size()
	}
	c.mu.RUnlock()

	if vocabSize == 0 && c.store.VocabularyExists() {
		if m, err := c.store.LoadVocabulary(); err == nil {
			vocabSize = len(m)
		}
	}

	return &ModelReport{
		TrainingDataCount: len(samples),
		CategoryCounts:    counts,
		VocabularySize:    vocabSize,
		ModelInfo:         c.store.ModelInfo(),
	}, nil
}

func (c *Classifier) buildExamplesLocked(samples []modelstore.Sample, grow bool) (training.Examples, []modelstore.Sample, int) {
	examples := make(training.Examples, 0, len(samples))
	valid := make([]modelstore.Sample, 0, len(samples))
	skipped := 0

	for _, sample := range samples {
		idx := CategoryIndex(sample.Category)
		if idx == -1 {
			logger.Warn("Unknown category in sample, skipping",
				zap.String("category", sample.Category),
			)
			skipped++
			continue
		}

		tokens := Tokenize(sample.Text)
		var seq []int
		if grow {
			seq = c.vocab.GrowSequence(tokens, c.maxLen)
		} else {
			seq = c.vocab.ToSequence(tokens, c.maxLen)
		}

		response := make([]float64, len(Categories))
		response[idx] = 1

		examples = append(examples, training.Example{
			Input:    c.sequenceToInput(seq),
			Response: response,
		})
		valid = append(valid, sample)
	}

	return examples, valid, skipped
}

func (c *Classifier) scoreExamplesLocked(examples training.Examples) (loss, accuracy float64) {
	if len(examples) == 0 {
		return 0, 0
	}

	correct := 0
	for _, ex := range examples {
		probs := c.net.Predict(ex.Input)
		loss += crossEntropy(probs, ex.Response)
		if argmax(probs) == argmax(ex.Response) {
			correct++
		}
	}

	loss /= float64(len(examples))
	accuracy = float64(correct) / float64(len(examples))
	return loss, accuracy
}

func (c *Classifier) sequenceToInput(seq []int) []float64 {
	input := make([]float64, len(seq))
	for i, id := range seq {
		v := float64(id) / float64(c.vocabCapacity)
		if v > 1 {
			v = 1
		}
		input[i] = v
	}
	return input
}

func normalizeOptions(opts TrainOptions) (epochs, batchSize int, valSplit, lr float64, save bool) {
	epochs = opts.Epochs
	if epochs <= 0 {
		epochs = 10
	}
	batchSize = opts.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	valSplit = opts.ValidationSplit
	if valSplit <= 0 || valSplit >= 1 {
		valSplit = 0.2
	}
	lr = opts.LearningRate
	if lr <= 0 {
		lr = 0.001
	}
	save = true
	if opts.SaveModel != nil {
		save = *opts.SaveModel
	}
	return
}

// resultFromProbs shapes a probability vector into a ClassificationResult.
// Argmax picks the first index on exact ties; high risk requires a non-neutral
// top category with confidence strictly above the threshold.
func resultFromProbs(probs []float64, highRiskThreshold float64) *ClassificationResult {
	categories := make(map[string]float64, len(Categories))
	for i, category := range Categories {
		p := 0.0
		if i < len(probs) {
			p = probs[i]
		}
		categories[category] = p
	}

	top := argmax(probs)
	if top >= len(Categories) {
		top = 0
	}
	topCategory := Categories[top]
	confidence := categories[topCategory]

	return &ClassificationResult{
		Categories:  categories,
		TopCategory: topCategory,
		Confidence:  confidence,
		IsHighRisk:  topCategory != CategoryNeutral && confidence > highRiskThreshold,
	}
}

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func crossEntropy(probs, ideal []float64) float64 {
	var sum float64
	for i := range ideal {
		if ideal[i] > 0 && i < len(probs) {
			sum -= ideal[i] * math.Log(probs[i]+1e-12)
		}
	}
	return sum
}
