// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package stgcnn_test

import (
	"fmt"

	"github.com/born-ml/trajnet/backend/cpu"
	"github.com/born-ml/trajnet/stgcnn"
	"github.com/born-ml/trajnet/tensor"
)

func ExampleTrajectoryPredictor() {
	backend := cpu.New()
	model, err := stgcnn.NewTrajectoryPredictor(stgcnn.DefaultConfig(), backend)
	if err != nil {
		panic(err)
	}
	model.Eval()

	positions := tensor.Zeros[float32](tensor.Shape{1, 8, 4, 2}, backend)
	adjacency := stgcnn.IdentityAdjacency(8, 4, backend)
	out, _ := model.Forward(positions, adjacency)

	fmt.Println(out.Shape())
	// Output: [1 5 12 4]
}

func ExampleSpatialAttention() {
	backend := cpu.New()
	attn, err := stgcnn.NewSpatialAttention(3, nil, backend)
	if err != nil {
		panic(err)
	}

	refined := attn.Forward(stgcnn.IdentityAdjacency(8, 3, backend))
	fmt.Println(refined.Shape())
	// Output: [8 3 3]
}
