package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/datastream/libsvm"
)

// LibSVM adapts the libsvm port to the Trainer contract. It trains NU_SVC
// models with an RBF kernel when gamma > 0 and a linear kernel otherwise.
type LibSVM struct {
	CacheMB float64
	Eps     float64
}

// NewLibSVM returns a trainer with the library's conventional cache size and
// stopping tolerance.
func NewLibSVM() *LibSVM {
	return &LibSVM{CacheMB: 100, Eps: 1e-3}
}

func toNodes(x []float64) []libsvm.SVMNode {
	nodes := make([]libsvm.SVMNode, len(x))
	for i, v := range x {
		nodes[i] = libsvm.SVMNode{Index: i + 1, Value: v}
	}
	return nodes
}

func (e *LibSVM) params(p Params) *libsvm.SVMParameter {
	kernel := libsvm.LINEAR
	gamma := 0.0
	if p.Gamma > 0 {
		kernel = libsvm.RBF
		gamma = p.Gamma
	}
	return &libsvm.SVMParameter{
		SvmType:     libsvm.NUSVC,
		KernelType:  kernel,
		Gamma:        gamma,
		Nu:           p.Nu,
		C:            p.Nu,
		CacheSize:   e.CacheMB,
		Eps:          e.Eps,
		Shrinking:    1,
		NrWeight:    2,
		WeightLabel: []int{-1, 1},
		Weight:       []float64{absWeight(p.NegWeight), absWeight(p.PosWeight)},
	}
}

func absWeight(w float64) float64 {
	if w < 0 {
		return -w
	}
	return w
}

// Train fits a model on normalized reduced feature vectors with labels
// +1/-1. The library aborts internally on some pathological parameter
// points; those surface here as errors, not panics.
func (e *LibSVM) Train(features [][]float64, labels []float64, p Params) (m Model, err error) {
	if len(features) == 0 || len(features) != len(labels) {
		return nil, fmt.Errorf("bad training set: %d features, %d labels", len(features), len(labels))
	}
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("libsvm training panicked: %v", r)
		}
	}()

	prob := &libsvm.SVMProblem{
		L: len(features),
		X: make([][]libsvm.SVMNode, len(features)),
		Y: labels,
	}
	for i, f := range features {
		prob.X[i] = toNodes(f)
	}

	param := e.params(p)
	svm := libsvm.NewSvm()
	if msg := svm.SVMCheckParameter(prob, param); msg != "" {
		return nil, fmt.Errorf("libsvm rejected parameters nu=%g gamma=%g: %s", p.Nu, p.Gamma, msg)
	}

	model := svm.SVMTrain(prob, param)
	return &libsvmModel{svm: svm, model: model}, nil
}

type libsvmModel struct {
	svm   *libsvm.SVM
	model *libsvm.SVMModel
}

func (m *libsvmModel) PredictRaw(x []float64) (val float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			val, err = 0, fmt.Errorf("libsvm predict panicked: %v", r)
		}
	}()
	dec := make([]float64, 1)
	m.svm.SVMPredictValues(m.model, toNodes(x), dec)
	return dec[0], nil
}

func (m *libsvmModel) SupportCount() int {
	return m.model.L
}

// Save writes the model as JSON of its exported fields; this port exposes no
// exported loader of its own text format.
func (m *libsvmModel) Save(path string) error {
	data, err := json.Marshal(m.model)
	if err != nil {
		return fmt.Errorf("marshal libsvm model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write libsvm model: %w", err)
	}
	return nil
}

// LoadLibSVM restores a model saved by Save.
func LoadLibSVM(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read libsvm model: %w", err)
	}
	model := new(libsvm.SVMModel)
	if err := json.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("unmarshal libsvm model: %w", err)
	}
	return &libsvmModel{svm: libsvm.NewSvm(), model: model}, nil
}
