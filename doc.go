// Package sktree loads fitted scikit-learn decision trees into Go and exports
// them as nested JSON documents for tree viewers.
//
// # Installation
//
//	go get github.com/YuminosukeSato/sktree
//
// # Quick Start
//
//	package main
//
//	import (
//	    "log"
//
//	    "github.com/YuminosukeSato/sktree/sklearn/tree"
//	)
//
//	func main() {
//	    t, err := tree.LoadTreeFromFile("iris_tree_dump.json")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    w, err := tree.ExportJSON(t, tree.ToFile("iris.json"),
//	        tree.WithFeatureNames([]string{"sepal length (cm)", "sepal width (cm)", "petal length (cm)", "petal width (cm)"}))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer w.Close()
//	}
//
// # Packages
//
//   - sklearn/tree: Tree arrays, the JSON exporter, the dump loader and the DecisionTree estimator
//   - core/model: Base estimator state and gob persistence
//   - core/parallel: Chunked parallel loops
//   - pkg/errors: Structured errors and warnings
//   - pkg/log: Structured logging on zerolog
//
// # License
//
// sktree is released under the MIT License.
package sktree
