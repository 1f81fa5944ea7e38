package model

import "gonum.org/v1/gonum/mat"

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Applier は入力の各行が到達する葉ノードIDを返すモデルのインターフェース
type Applier interface {
	// Apply は各行が到達した葉ノードのIDを返す
	Apply(X mat.Matrix) ([]int, error)
}
