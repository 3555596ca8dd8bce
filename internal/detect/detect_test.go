package detect

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/misfinder/internal/config"
	"github.com/phobologic/misfinder/internal/model"
	"github.com/phobologic/misfinder/internal/parse"
)

func input(t *testing.T, p model.Provider, pathsAndSources ...string) *Input {
	t.Helper()
	var sources []model.SourceFile
	for i := 0; i+1 < len(pathsAndSources); i += 2 {
		sources = append(sources, model.SourceFile{Path: pathsAndSources[i], Text: []byte(pathsAndSources[i+1])})
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := parse.Build(context.Background(), sources, parse.Options{Logger: logger})
	require.NoError(t, err)
	require.Empty(t, repo.Failures)
	return &Input{
		Repo:     "test",
		Tree:     repo.Merged,
		Files:    repo.Files,
		Provider: p,
		Config:   config.Default(),
		Logger:   logger,
	}
}

type detectCase struct {
	name     string
	provider model.Provider
	source   string
	want     int
}

func runCases(t *testing.T, d Detector, kind model.FindingKind, cases []detectCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := d.Detect(context.Background(), input(t, tc.provider, "main.py", tc.source))
			require.NoError(t, err)
			assert.Equal(t, d.Name(), res.Detector)
			assert.Equal(t, tc.want, res.Count, "findings: %+v notes: %v", res.Findings, res.Notes)
			assert.Len(t, res.Findings, res.Count)
			for _, f := range res.Findings {
				assert.Equal(t, kind, f.Kind)
				assert.NotEmpty(t, f.Message)
			}
		})
	}
}

func TestPatternsOrder(t *testing.T) {
	t.Parallel()

	var names []string
	for _, d := range Patterns() {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{
		"data-drift", "early-stopping", "training-checkpoint",
		"schema-mismatch", "rate-limit", "output-misread",
	}, names)
}

func TestDataDrift(t *testing.T) {
	t.Parallel()

	runCases(t, DataDrift{}, model.MissingDriftMonitoring, []detectCase{
		{"nothing imported", model.Unknown, "import os\n", 1},
		{"imported and used", model.Unknown,
			"from evidently.metric_preset import DataDriftPreset\nreport = Report(metrics=[DataDriftPreset()])\n", 0},
		{"attribute use", model.AWS,
			"import sagemaker.model_monitor as mm\nmon = mm.DefaultModelMonitor(role)\n", 0},
		{"imported but unused", model.Unknown, "import scipy\nx = scipy.mean(a)\n", 1},
	})
}

func TestEarlyStopping(t *testing.T) {
	t.Parallel()

	runCases(t, EarlyStopping{}, model.MissingEarlyStopping, []detectCase{
		{"unknown provider", model.Unknown, "import os\n", 0},
		{"sdk not imported", model.AWS, "import boto3\n", 0},
		{"tuner not imported", model.AWS, "import sagemaker\nest.fit()\n", 1},
		{"aws auto", model.AWS,
			"from sagemaker.tuner import HyperparameterTuner\ntuner = HyperparameterTuner(est, early_stopping_type=\"Auto\")\n", 0},
		{"aws off", model.AWS,
			"from sagemaker.tuner import HyperparameterTuner\ntuner = HyperparameterTuner(est, early_stopping_type=\"Off\")\n", 1},
		{"google configured", model.Google,
			"from tensorflow.keras.callbacks import EarlyStopping\ncb = EarlyStopping(monitor=\"val_loss\", patience=3, restore_best_weights=True)\n", 0},
		{"google missing patience", model.Google,
			"from tensorflow.keras.callbacks import EarlyStopping\ncb = EarlyStopping(monitor=\"val_loss\")\n", 1},
		{"azure limits", model.Azure,
			"import azureml.core\nfrom azure.ai.ml.sweep import BanditPolicy\nsweep_job.set_limits(max_total_trials=20, max_concurrent_trials=4, timeout=7200)\n", 0},
		{"azure partial limits", model.Azure,
			"import azureml.core\nfrom azure.ai.ml.sweep import BanditPolicy\nsweep_job.set_limits(max_total_trials=20)\n", 1},
	})
}

func TestCheckpoint(t *testing.T) {
	t.Parallel()

	runCases(t, Checkpoint{}, model.MissingCheckpointing, []detectCase{
		{"no sdk", model.Unknown, "import numpy\n", 0},
		{"google save and load", model.Google,
			"import tensorflow as tf\ncb = tf.keras.callbacks.ModelCheckpoint(path)\nmodel.load_weights(path)\n", 0},
		{"google save only", model.Google, "import tensorflow as tf\nmodel.save_weights(path)\n", 1},
		{"google nothing", model.Google, "import tensorflow as tf\nmodel.fit(x)\n", 1},
		{"sagemaker uri and local path", model.AWS,
			"import sagemaker\nest = Estimator(checkpoint_s3_uri=\"s3://b/c\", checkpoint_local_path=\"/opt/ml/checkpoints\")\n", 0},
		{"sagemaker uri only", model.AWS,
			"import sagemaker\nest = Estimator(checkpoint_s3_uri=\"s3://b/c\")\n", 1},
	})
}

func TestSchemaMismatch(t *testing.T) {
	t.Parallel()

	const split = "X_train, X_test, y_train, y_test = train_test_split(X, y)\nmodel.fit(X_train, y_train)\n"
	runCases(t, SchemaMismatch{}, model.SchemaMismatchBlindness, []detectCase{
		{"no data", model.Unknown, "print(1)\n", 1},
		{"split without checks", model.Unknown, split + "model.predict(X_test)\n", 1},
		{"split with comparison", model.Unknown,
			split + "assert X_train.columns.tolist() == X_test.columns.tolist()\n", 0},
		{"fit and predict compared", model.Unknown,
			"model.fit(train_df)\nmodel.predict(test_df)\nif train_df.dtypes != test_df.dtypes:\n    raise ValueError()\n", 0},
		{"azure validation", model.Azure,
			"import azureml.dataprep\nmodel.fit(train_df)\nmodel.predict(test_df)\nds.validate_schema(schema)\n", 0},
		{"validation not imported", model.Azure,
			"model.fit(train_df)\nmodel.predict(test_df)\nds.validate_schema(schema)\n", 1},
	})
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	runCases(t, RateLimit{}, model.MissingRateLimitMonitor, []detectCase{
		{"unknown provider", model.Unknown, "import requests\n", 0},
		{"aws metrics", model.AWS,
			"import boto3\ncw = boto3.client(\"cloudwatch\")\ncw.get_metric_data(Queries=q)\n", 0},
		{"aws unmonitored", model.AWS, "import boto3\ncomprehend.detect_sentiment(Text=t)\n", 1},
		{"azure metrics client", model.Azure,
			"from azure.monitor.query import MetricsQueryClient\nc = MetricsQueryClient(cred)\n", 0},
		{"requests header", model.Azure,
			"import requests\nr = requests.post(endpoint, headers={\"X-RateLimit-Remaining\": \"1\"})\n", 0},
		{"requests params variable", model.Google,
			"import requests\nparams = {\"quota\": 1}\nrequests.get(u, params=params)\n", 0},
		{"requests monitoring url", model.Google,
			"import requests\nrequests.request(url=\"https://monitoring.googleapis.com/v3\", method=\"GET\")\n", 0},
		{"requests plain", model.Google, "import requests\nrequests.get(u, params={\"q\": 1})\n", 1},
	})
}

func TestOutputMisread(t *testing.T) {
	t.Parallel()

	const prelude = "from google.cloud import language_v1\nclient = language_v1.LanguageServiceClient()\n"
	runCases(t, OutputMisread{}, model.OutputFieldMisuse, []detectCase{
		{"unknown provider", model.Unknown, prelude, 0},
		{"no api call", model.Google, prelude, 0},
		{"score only condition", model.Google, prelude +
			"s = client.analyze_sentiment(request=req).document_sentiment\nif s.score > 0:\n    print(1)\n", 1},
		{"score and magnitude", model.Google, prelude +
			"s = client.analyze_sentiment(request=req).document_sentiment\nif s.score > 0 and s.magnitude > 1:\n    print(1)\n", 0},
		{"fields read separately", model.Google, prelude +
			"s = client.analyze_sentiment(request=req).document_sentiment\nprint(s.score, s.magnitude)\n", 0},
		{"no field read", model.Google, prelude + "client.analyze_sentiment(request=req)\n", 1},
		{"aws subscript", model.AWS,
			"import boto3\nr = comprehend.detect_sentiment(Text=t)\nif r[\"Sentiment\"] == \"POSITIVE\":\n    ok()\n", 1},
	})
}

func TestOutputMisreadReportsPerFile(t *testing.T) {
	t.Parallel()

	misuse := "import boto3\nr = comprehend.detect_sentiment(Text=t)\nlabel = r[\"Sentiment\"]\n"
	clean := "import boto3\nr = comprehend.detect_sentiment(Text=t)\nuse(r[\"Sentiment\"], r[\"SentimentScore\"])\n"
	res, err := OutputMisread{}.Detect(context.Background(),
		input(t, model.AWS, "a.py", misuse, "b.py", clean, "c.py", misuse))
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, model.Location{File: "a.py", Line: 2}, res.Findings[0].Location)
	assert.Equal(t, "c.py", res.Findings[1].Location.File)
}

func TestUnquote(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		`"Auto"`:    "Auto",
		`'x'`:       "x",
		`r"raw"`:    "raw",
		`f'{a}'`:    "{a}",
		`"""doc"""`: "doc",
		`bare`:      "bare",
		`""`:        "",
	} {
		assert.Equal(t, want, unquote(in), in)
	}
}
