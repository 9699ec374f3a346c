package flavor_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	xcmp "github.com/opst/mlreg/pkg/cmp"
	"github.com/opst/mlreg/pkg/dataset"
	"github.com/opst/mlreg/pkg/flavor"
	"github.com/opst/mlreg/pkg/forest"
	"github.com/opst/mlreg/pkg/utils/try"
)

func fitted(t *testing.T) (dataset.Frame, *forest.Forest) {
	t.Helper()
	x := dataset.Frame{Columns: []string{"bedrooms", "accommodates"}}
	y := []float64{}
	for i := range 20 {
		x.Rows = append(x.Rows, []float64{float64(i % 4), float64(i)})
		y = append(y, float64(50+10*i))
	}
	p := forest.DefaultParams()
	p.NEstimators = 3
	p.Seed = 42
	return x, try.To(forest.Fit(context.Background(), x, y, p)).OrFatal(t)
}

func TestPack(t *testing.T) {
	x, f := fitted(t)

	m := flavor.New("model", "run-1", f.Params.AsMap())
	m.Signature = try.To(flavor.InferSignature(x, "price")).OrFatal(t)
	example := x.Head(3)
	files := try.To(flavor.Pack(m, f, &example)).OrFatal(t)

	names := []string{}
	byName := map[string][]byte{}
	for _, file := range files {
		names = append(names, file.Name)
		byName[file.Name] = file.Content
	}
	if diff := cmp.Diff([]string{"MLmodel", "input_example.json", "model.json"}, names); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}

	t.Run("MLmodel is read back", func(t *testing.T) {
		got := try.To(flavor.ReadMLmodel(bytes.NewReader(byName["MLmodel"]))).OrFatal(t)
		if got.ArtifactPath != "model" || got.RunId != "run-1" || got.ModelUUID != m.ModelUUID {
			t.Errorf("unexpected: %+v", got)
		}
		fl := try.To(got.GoForest()).OrFatal(t)
		if fl.ModelData != flavor.ModelDataFile || fl.Params[forest.KeyNEstimators] != "3" {
			t.Errorf("flavor: %+v", fl)
		}
		if got.SavedInputExampleInfo == nil || got.SavedInputExampleInfo.PandasOrient != "split" {
			t.Errorf("input example info: %+v", got.SavedInputExampleInfo)
		}
		cs := try.To(got.Signature.InputColumns()).OrFatal(t)
		want := []flavor.ColSpec{{Name: "bedrooms", Type: "double"}, {Name: "accommodates", Type: "double"}}
		if diff := cmp.Diff(want, cs); diff != "" {
			t.Errorf("signature (-want +got):\n%s", diff)
		}
	})

	t.Run("input example is in split orient", func(t *testing.T) {
		ex := try.To(dataset.DecodeRequest(byName["input_example.json"])).OrFatal(t)
		if diff := cmp.Diff(example, ex); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("model data predicts as the original", func(t *testing.T) {
		decoded := try.To(flavor.DecodeForest(bytes.NewReader(byName["model.json"]))).OrFatal(t)
		want := try.To(f.Predict(x)).OrFatal(t)
		got := try.To(decoded.Predict(x)).OrFatal(t)
		if !xcmp.SliceEq(want, got) {
			t.Error("predictions differ")
		}
	})

	t.Run("Save and Load", func(t *testing.T) {
		dir := t.TempDir()
		if err := flavor.Save(dir, files); err != nil {
			t.Fatal(err)
		}
		lm, lf, err := flavor.Load(dir)
		if err != nil {
			t.Fatal(err)
		}
		if lm.ModelUUID != m.ModelUUID || len(lf.Trees) != 3 {
			t.Errorf("unexpected: %+v", lm)
		}
	})
}

func TestDecodeForest_Broken(t *testing.T) {
	for name, data := range map[string]string{
		"null tree":    `{"features": ["a"], "trees": [null]}`,
		"no trees":     `{"features": ["a"], "trees": []}`,
		"not json":     `{"features": `,
		"empty arrays": `{"features": ["a"], "trees": [{}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			f, err := flavor.DecodeForest(strings.NewReader(data))
			if err == nil {
				t.Errorf("broken model data is decoded: %+v", f)
			}
		})
	}
}

func TestReadMLmodel_OtherFlavor(t *testing.T) {
	doc := `
artifact_path: model
flavors:
  python_function:
    loader_module: mlflow.sklearn
  sklearn:
    pickled_model: model.pkl
model_uuid: '0123'
utc_time_created: '2023-01-01 00:00:00.000000'
`
	m := try.To(flavor.ReadMLmodel(strings.NewReader(doc))).OrFatal(t)
	if len(m.Flavors.Others) != 2 {
		t.Errorf("other flavors: %v", m.Flavors.Others)
	}
	if _, err := m.GoForest(); !errors.Is(err, flavor.ErrNoFlavor) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSignature_Enforce(t *testing.T) {
	x := dataset.Frame{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}}}
	sig := try.To(flavor.InferSignature(x, "y")).OrFatal(t)

	t.Run("columns are reordered", func(t *testing.T) {
		in := dataset.Frame{Columns: []string{"b", "extra", "a"}, Rows: [][]float64{{2, 9, 1}}}
		got := try.To(sig.Enforce(in)).OrFatal(t)
		if diff := cmp.Diff(x, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("missing columns are reported", func(t *testing.T) {
		in := dataset.Frame{Columns: []string{"b"}, Rows: [][]float64{{2}}}
		_, err := sig.Enforce(in)
		if !errors.Is(err, dataset.ErrNoColumn) || !strings.Contains(err.Error(), "[a]") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
