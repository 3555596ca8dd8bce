package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phobologic/misfinder/internal/config"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/tree"
)

func importTree(modules ...[]string) *tree.Tree {
	t := tree.New("module")
	for _, mods := range modules {
		t.Add(t.Root(), tree.Node{Kind: tree.KindImport, Modules: mods})
	}
	t.Link()
	return t
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c := NewImportClassifier(config.Default())

	tests := []struct {
		name    string
		modules [][]string
		want    model.Provider
	}{
		{"none", nil, model.Unknown},
		{"unrelated", [][]string{{"os"}, {"numpy"}}, model.Unknown},
		{"azure", [][]string{{"azure.ai.textanalytics"}}, model.Azure},
		{"aws majority", [][]string{{"boto3"}, {"sagemaker.tuner"}, {"google.cloud.storage"}}, model.AWS},
		{"google via tensorflow", [][]string{{"tensorflow.keras.callbacks"}}, model.Google},
		{"tie goes to table order", [][]string{{"boto3"}, {"azureml.core"}}, model.Azure},
		{"multi-module import", [][]string{{"boto3", "sagemaker"}, {"azure"}}, model.AWS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.Classify(importTree(tt.modules...)))
		})
	}
}

func TestCounts(t *testing.T) {
	t.Parallel()

	c := NewImportClassifier(config.Default())
	counts := c.Counts(importTree([]string{"google.cloud.language"}, []string{"vertexai"}))
	assert.Equal(t, map[model.Provider]int{model.Azure: 0, model.Google: 2, model.AWS: 0}, counts)
}
