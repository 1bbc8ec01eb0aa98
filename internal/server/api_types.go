package server

import "github.com/swarnim-j/micrograd/internal/train"

// ModelConfig is the network and optimizer part of /api/init.
type ModelConfig struct {
	Inputs       int     `json:"inputs"`
	Layers       []int   `json:"layers"`
	Seed         int64   `json:"seed"`
	LearningRate float64 `json:"learning_rate"`
	Optimizer    string  `json:"optimizer"`
}

// InitRequest is the payload for /api/init.
// It provides training samples and model hyperparameters.
type InitRequest struct {
	Config  ModelConfig    `json:"config"`
	Samples []train.Sample `json:"samples"`
}

// InitResponse reports the size of the freshly built model.
type InitResponse struct {
	Status string `json:"status"`
	Params int    `json:"params"`
}

// TrainRequest controls how much work /api/train performs in one call.
// StepsPerCall is optional and defaults to 1.
type TrainRequest struct {
	StepsPerCall int `json:"steps_per_call"`
}

// PredictRequest is the payload for /api/predict.
type PredictRequest struct {
	Inputs []float64 `json:"inputs"`
}

// PredictResponse holds one value per network output.
type PredictResponse struct {
	Outputs []float64 `json:"outputs"`
}

// GraphRequest asks for the loss graph of one sample.
type GraphRequest = train.Sample

// GraphNode is one node of an exported graph. Producers are ids of earlier
// nodes in the same response.
type GraphNode struct {
	ID        int     `json:"id"`
	Op        string  `json:"op"`
	Data      float64 `json:"data"`
	Grad      float64 `json:"grad"`
	Producers []int   `json:"producers"`
}

// GraphResponse lists the loss graph in topological order, root last.
type GraphResponse struct {
	Loss  float64     `json:"loss"`
	Nodes []GraphNode `json:"nodes"`
}
